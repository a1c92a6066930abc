package fixtures

import (
	"fmt"

	"github.com/Veraticus/catalog-mapper/internal/model"
)

type node struct {
	value    model.CategoryNode
	children []*node
}

// Builder assembles a taxonomy tree. Category opens a nested level and End
// closes it; Leaf adds a match target to the currently open level.
type Builder struct {
	root  *node
	stack []*node
}

// NewTree starts a tree with an unnamed root.
func NewTree() *Builder {
	root := &node{}
	return &Builder{root: root, stack: []*node{root}}
}

// Category opens a child category carrying a description category id.
func (b *Builder) Category(name string, descriptionCategoryID int64) *Builder {
	return b.open(model.CategoryNode{
		CategoryName:          name,
		DescriptionCategoryID: model.Int64(descriptionCategoryID),
	})
}

// Group opens a child category without a description category id.
func (b *Builder) Group(name string) *Builder {
	return b.open(model.CategoryNode{CategoryName: name})
}

// DisabledGroup opens a disabled child category.
func (b *Builder) DisabledGroup(name string) *Builder {
	return b.open(model.CategoryNode{CategoryName: name, Disabled: true})
}

// Leaf adds a type under the open category.
func (b *Builder) Leaf(typeName string, typeID int64) *Builder {
	b.current().children = append(b.current().children, &node{value: model.CategoryNode{
		TypeName: typeName,
		TypeID:   model.Int64(typeID),
	}})
	return b
}

// LeafWithCategory adds a type that defines its own description category id.
func (b *Builder) LeafWithCategory(typeName string, typeID, descriptionCategoryID int64) *Builder {
	b.current().children = append(b.current().children, &node{value: model.CategoryNode{
		TypeName:              typeName,
		TypeID:                model.Int64(typeID),
		DescriptionCategoryID: model.Int64(descriptionCategoryID),
	}})
	return b
}

// End closes the open category.
func (b *Builder) End() *Builder {
	if len(b.stack) == 1 {
		panic("fixtures: End called on the root")
	}
	b.stack = b.stack[:len(b.stack)-1]
	return b
}

// Build returns the assembled tree.
func (b *Builder) Build() model.CategoryNode {
	return b.root.build()
}

func (b *Builder) open(value model.CategoryNode) *Builder {
	child := &node{value: value}
	b.current().children = append(b.current().children, child)
	b.stack = append(b.stack, child)
	return b
}

func (b *Builder) current() *node {
	return b.stack[len(b.stack)-1]
}

// build converts the builder nodes with an explicit stack; fixtures include
// very deep chains.
func (n *node) build() model.CategoryNode {
	type frame struct {
		src *node
		dst *model.CategoryNode
	}

	out := n.value
	stack := []frame{{src: n, dst: &out}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(f.src.children) == 0 {
			continue
		}
		f.dst.Children = make([]model.CategoryNode, len(f.src.children))
		for i, child := range f.src.children {
			f.dst.Children[i] = child.value
			stack = append(stack, frame{src: child, dst: &f.dst.Children[i]})
		}
	}
	return out
}

// DeepChain builds a single path of depth nested groups ending in one leaf.
// The topmost group defines description category 77.
func DeepChain(depth int, leafName string, typeID int64) model.CategoryNode {
	b := NewTree().Category("level-0", 77)
	for i := 1; i < depth; i++ {
		b.Group(fmt.Sprintf("level-%d", i))
	}
	b.Leaf(leafName, typeID)
	return b.Build()
}
