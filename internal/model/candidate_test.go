package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidates_SortIsStable(t *testing.T) {
	candidates := Candidates{
		NewCandidate(Leaf{TypeName: "B", Order: 0}, 0.5),
		NewCandidate(Leaf{TypeName: "A", Order: 1}, 0.8),
		NewCandidate(Leaf{TypeName: "D", Order: 2}, 0.3),
		NewCandidate(Leaf{TypeName: "C", Order: 3}, 0.8),
	}

	candidates.Sort()

	got := make([]string, len(candidates))
	for i, c := range candidates {
		got[i] = c.TypeName
	}
	assert.Equal(t, []string{"A", "C", "B", "D"}, got)
}

func TestCandidates_Ranked(t *testing.T) {
	var candidates Candidates
	for i := 0; i < 15; i++ {
		candidates = append(candidates, NewCandidate(Leaf{TypeName: "leaf", TypeID: int64(i), Order: i}, float64(i)/15))
	}

	ranked := candidates.Ranked()

	assert.Len(t, ranked, MaxCandidates)
	assert.Equal(t, int64(14), ranked[0].TypeID)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Similarity, ranked[i].Similarity)
	}
}

func TestCandidates_TopAndTopN(t *testing.T) {
	var empty Candidates
	assert.Nil(t, empty.Top())
	assert.Empty(t, empty.TopN(3))

	candidates := Candidates{
		{TypeName: "A", Similarity: 0.9},
		{TypeName: "B", Similarity: 0.4},
	}
	assert.Equal(t, "A", candidates.Top().TypeName)
	assert.Len(t, candidates.TopN(5), 2)
	assert.Len(t, candidates.TopN(1), 1)
	assert.Empty(t, candidates.TopN(0))
}

func TestCandidate_ResolvedDescriptionCategoryID(t *testing.T) {
	withParent := Candidate{TypeName: "Гайка", TypeID: 1, DescriptionCategoryID: Int64(10)}
	assert.Equal(t, int64(10), withParent.ResolvedDescriptionCategoryID())

	orphan := Candidate{TypeName: "Гайка", TypeID: 5}
	assert.Equal(t, int64(5), orphan.ResolvedDescriptionCategoryID())
}

func TestOffer_MissingFields(t *testing.T) {
	offer := Offer{
		ID: "1", Name: "Гайка", Vendor: "ACME", VendorCode: "G-1", Price: "100",
		Count: "4", Dimensions: "10/10/10", Weight: "0.1", CategoryID: "7",
	}
	assert.Empty(t, offer.MissingFields())

	offer.Vendor = ""
	offer.Weight = ""
	assert.Equal(t, []string{"vendor", "weight"}, offer.MissingFields())
}

func TestResolutionState_Resolved(t *testing.T) {
	assert.True(t, StateAutoResolved.Resolved())
	assert.True(t, StateResolvedByDecision.Resolved())
	assert.False(t, StateAwaitingDecision.Resolved())
	assert.False(t, StateSkippedByUser.Resolved())
}
