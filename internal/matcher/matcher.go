package matcher

import (
	"math"

	"github.com/Veraticus/catalog-mapper/internal/model"
	"github.com/Veraticus/catalog-mapper/internal/taxonomy"
)

// Matcher ranks taxonomy leaves against a query.
type Matcher interface {
	// Rank scores every leaf once and returns at most model.MaxCandidates
	// candidates by non-increasing similarity.
	Rank(query string, idx *taxonomy.Index) model.Candidates
	// Name identifies the backend in logs and status output.
	Name() string
}

// scoreFunc compares two normalized strings and returns a value in [0,1].
type scoreFunc func(query, name string) float64

// textMatcher is the shared implementation for the string-similarity backends.
type textMatcher struct {
	norm  *Normalizer
	names *leafCache[string]
	score scoreFunc
	name  string
}

func newTextMatcher(name string, norm *Normalizer, score scoreFunc) *textMatcher {
	return &textMatcher{
		name:  name,
		norm:  norm,
		score: score,
		names: newLeafCache[string](),
	}
}

func (m *textMatcher) Name() string {
	return m.name
}

func (m *textMatcher) Rank(query string, idx *taxonomy.Index) model.Candidates {
	q := m.norm.Normalize(query)
	if q == "" || idx == nil || idx.Len() == 0 {
		return nil
	}

	names := m.names.get(idx, func() []string {
		return normalizeLeaves(m.norm, idx)
	})

	leaves := idx.Leaves()
	candidates := make(model.Candidates, len(leaves))
	for i, leaf := range leaves {
		candidates[i] = model.NewCandidate(leaf, clamp(m.score(q, names[i])))
	}
	return candidates.Ranked()
}

func normalizeLeaves(norm *Normalizer, idx *taxonomy.Index) []string {
	leaves := idx.Leaves()
	names := make([]string, len(leaves))
	for i, leaf := range leaves {
		names[i] = norm.Normalize(leaf.TypeName)
	}
	return names
}

func clamp(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
