package matcher

import (
	"log/slog"

	"github.com/Veraticus/catalog-mapper/internal/model"
	"github.com/Veraticus/catalog-mapper/internal/taxonomy"
)

// vectorMatcher ranks by cosine similarity under a pre-fit model.
type vectorMatcher struct {
	norm    *Normalizer
	model   *Model
	vectors *leafCache[vector]
}

// NewVector returns the TF-IDF backend. A nil model is allowed: the backend
// then returns no candidates.
func NewVector(norm *Normalizer, m *Model) Matcher {
	return &vectorMatcher{
		norm:    norm,
		model:   m,
		vectors: newLeafCache[vector](),
	}
}

func (m *vectorMatcher) Name() string {
	return BackendTFIDF
}

func (m *vectorMatcher) Rank(query string, idx *taxonomy.Index) model.Candidates {
	if m.model == nil {
		slog.Debug("Vector model unavailable, no candidates", "query", query)
		return nil
	}

	q := m.norm.Normalize(query)
	if q == "" || idx == nil || idx.Len() == 0 {
		return nil
	}

	qv := m.model.vectorize(q)
	leafVectors := m.vectors.get(idx, func() []vector {
		names := normalizeLeaves(m.norm, idx)
		out := make([]vector, len(names))
		for i, name := range names {
			out[i] = m.model.vectorize(name)
		}
		return out
	})

	leaves := idx.Leaves()
	candidates := make(model.Candidates, len(leaves))
	for i, leaf := range leaves {
		candidates[i] = model.NewCandidate(leaf, clamp(cosine(qv, leafVectors[i])))
	}
	return candidates.Ranked()
}
