package model

import "sort"

// MaxCandidates caps every ranked result set.
const MaxCandidates = 10

// Candidate is a taxonomy leaf scored against a query.
type Candidate struct {
	DescriptionCategoryID *int64  `json:"description_category_id,omitempty"`
	TypeName              string  `json:"type_name"`
	TypeID                int64   `json:"type_id"`
	Similarity            float64 `json:"similarity"`
	order                 int
}

// NewCandidate scores a leaf. The leaf's traversal order is kept for tie-breaking.
func NewCandidate(leaf Leaf, similarity float64) Candidate {
	return Candidate{
		TypeName:              leaf.TypeName,
		TypeID:                leaf.TypeID,
		DescriptionCategoryID: leaf.DescriptionCategoryID,
		Similarity:            similarity,
		order:                 leaf.Order,
	}
}

// ResolvedDescriptionCategoryID returns the description category id, or the
// type id when the taxonomy left it empty.
func (c *Candidate) ResolvedDescriptionCategoryID() int64 {
	if c.DescriptionCategoryID != nil {
		return *c.DescriptionCategoryID
	}
	return c.TypeID
}

// Candidates is a ranked result set.
type Candidates []Candidate

// Len implements sort.Interface.
func (c Candidates) Len() int {
	return len(c)
}

// Less implements sort.Interface - higher similarity first, then traversal order.
func (c Candidates) Less(i, j int) bool {
	if c[i].Similarity != c[j].Similarity {
		return c[i].Similarity > c[j].Similarity
	}
	return c[i].order < c[j].order
}

// Swap implements sort.Interface.
func (c Candidates) Swap(i, j int) {
	c[i], c[j] = c[j], c[i]
}

// Sort orders candidates by non-increasing similarity. Equal scores keep
// their taxonomy traversal order.
func (c Candidates) Sort() {
	sort.Stable(c)
}

// Top returns the best candidate, or nil if empty.
func (c Candidates) Top() *Candidate {
	if len(c) == 0 {
		return nil
	}
	return &c[0]
}

// TopN returns a copy of the first n candidates.
func (c Candidates) TopN(n int) Candidates {
	if n <= 0 {
		return Candidates{}
	}

	if n > len(c) {
		n = len(c)
	}

	result := make(Candidates, n)
	copy(result, c[:n])
	return result
}

// Ranked sorts the set and caps it at MaxCandidates.
func (c Candidates) Ranked() Candidates {
	c.Sort()
	if len(c) > MaxCandidates {
		return c[:MaxCandidates:MaxCandidates]
	}
	return c
}
