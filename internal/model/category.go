// Package model defines the core domain models used throughout the application.
package model

// CategoryNode is one node of the marketplace classification tree.
// Nodes that carry a TypeName are leaves and the only valid match targets.
type CategoryNode struct {
	TypeID                *int64         `json:"type_id,omitempty"`
	DescriptionCategoryID *int64         `json:"description_category_id,omitempty"`
	TypeName              string         `json:"type_name,omitempty"`
	CategoryName          string         `json:"category_name,omitempty"`
	Children              []CategoryNode `json:"children,omitempty"`
	Disabled              bool           `json:"disabled,omitempty"`
}

// IsLeaf reports whether the node is a match target.
func (n *CategoryNode) IsLeaf() bool {
	return n.TypeName != ""
}

// Leaf is a flattened taxonomy entry with its inherited description category.
type Leaf struct {
	DescriptionCategoryID *int64
	TypeName              string
	Path                  []string
	TypeID                int64
	Order                 int
}

// ResolvedDescriptionCategoryID returns the leaf's description category id,
// falling back to the type id when the taxonomy defines none.
func (l Leaf) ResolvedDescriptionCategoryID() int64 {
	if l.DescriptionCategoryID != nil {
		return *l.DescriptionCategoryID
	}
	return l.TypeID
}

// Int64 returns a pointer to v. Handy for optional ids in literals.
func Int64(v int64) *int64 {
	return &v
}
