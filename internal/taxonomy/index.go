package taxonomy

import (
	"slices"

	"github.com/Veraticus/catalog-mapper/internal/model"
)

// Options controls flattening.
type Options struct {
	// SkipDisabled drops disabled nodes and everything below them.
	SkipDisabled bool
}

// Stats summarizes a flattened taxonomy.
type Stats struct {
	Leaves                int
	Categories            int
	MaxDepth              int
	LeavesWithoutCategory int
	DisabledNodes         int
}

// Index is the flattened, read-only view of a taxonomy.
type Index struct {
	byType     map[int64][]int
	leaves     []model.Leaf
	categories []string
	stats      Stats
}

// New flattens root into an Index.
func New(root model.CategoryNode, opts Options) *Index {
	idx := &Index{byType: make(map[int64][]int)}
	walk(root, opts, func(v visit) {
		if v.depth > idx.stats.MaxDepth {
			idx.stats.MaxDepth = v.depth
		}
		if v.node.Disabled {
			idx.stats.DisabledNodes++
		}
		if v.node.CategoryName != "" {
			idx.categories = append(idx.categories, v.node.CategoryName)
		}
		if !v.node.IsLeaf() {
			return
		}
		leaf := newLeaf(v, len(idx.leaves))
		if leaf.DescriptionCategoryID == nil {
			idx.stats.LeavesWithoutCategory++
		}
		idx.byType[leaf.TypeID] = append(idx.byType[leaf.TypeID], len(idx.leaves))
		idx.leaves = append(idx.leaves, leaf)
	})
	idx.stats.Leaves = len(idx.leaves)
	idx.stats.Categories = len(idx.categories)
	return idx
}

// Flatten returns the leaves of root in traversal order.
func Flatten(root model.CategoryNode, opts Options) []model.Leaf {
	return New(root, opts).Leaves()
}

// Leaves returns the flattened leaves in traversal order. The slice is shared;
// callers must not modify it.
func (i *Index) Leaves() []model.Leaf {
	return i.leaves
}

// Len returns the number of leaves.
func (i *Index) Len() int {
	return len(i.leaves)
}

// Lookup returns every leaf with the given type id. A type may sit under
// more than one description category.
func (i *Index) Lookup(typeID int64) []model.Leaf {
	positions := i.byType[typeID]
	out := make([]model.Leaf, len(positions))
	for n, p := range positions {
		out[n] = i.leaves[p]
	}
	return out
}

// Corpus returns every leaf name, in order. Used to fit vector models.
func (i *Index) Corpus() []string {
	names := make([]string, len(i.leaves))
	for n, leaf := range i.leaves {
		names[n] = leaf.TypeName
	}
	return names
}

// CategoryNames returns the names of the non-leaf categories.
func (i *Index) CategoryNames() []string {
	return slices.Clone(i.categories)
}

// Stats returns summary counters gathered while flattening.
func (i *Index) Stats() Stats {
	return i.stats
}

type visit struct {
	node      *model.CategoryNode
	inherited *int64
	parent    *pathNode
	depth     int
}

// pathNode is a parent-linked list of category names; siblings share it.
type pathNode struct {
	parent *pathNode
	name   string
}

func (p *pathNode) names() []string {
	var out []string
	for n := p; n != nil; n = n.parent {
		out = append(out, n.name)
	}
	slices.Reverse(out)
	return out
}

// walk visits every node in pre-order using an explicit stack.
func walk(root model.CategoryNode, opts Options, fn func(visit)) {
	stack := []visit{{node: &root}}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		node := current.node
		if opts.SkipDisabled && node.Disabled {
			continue
		}

		inherited := current.inherited
		if node.DescriptionCategoryID != nil {
			inherited = node.DescriptionCategoryID
		}
		current.inherited = inherited
		fn(current)

		parent := current.parent
		if node.CategoryName != "" {
			parent = &pathNode{parent: parent, name: node.CategoryName}
		}

		// Children are pushed in reverse so they pop in document order.
		for c := len(node.Children) - 1; c >= 0; c-- {
			stack = append(stack, visit{
				node:      &node.Children[c],
				inherited: inherited,
				parent:    parent,
				depth:     current.depth + 1,
			})
		}
	}
}

func newLeaf(v visit, order int) model.Leaf {
	leaf := model.Leaf{
		TypeName:              v.node.TypeName,
		DescriptionCategoryID: v.inherited,
		Path:                  v.parent.names(),
		Order:                 order,
	}
	if v.node.TypeID != nil {
		leaf.TypeID = *v.node.TypeID
	}
	return leaf
}
