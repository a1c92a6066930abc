// Package engine resolves feed offers to taxonomy leaves and drives review
// sessions.
package engine

import (
	"errors"
	"log/slog"
	"time"

	"github.com/Veraticus/catalog-mapper/internal/decision"
	"github.com/Veraticus/catalog-mapper/internal/matcher"
	"github.com/Veraticus/catalog-mapper/internal/model"
	"github.com/Veraticus/catalog-mapper/internal/payload"
	"github.com/Veraticus/catalog-mapper/internal/taxonomy"
)

// DefaultThreshold is the minimum similarity for automatic resolution.
const DefaultThreshold = 0.5

// Outcome is the result of resolving one offer.
type Outcome struct {
	Payload  *model.ListingPayload
	Decision *model.PendingDecision
	Err      error
	State    model.ResolutionState
}

// Resolver applies the per-offer rules: validate, rank, auto-resolve or
// post a pending decision.
type Resolver struct {
	index     *taxonomy.Index
	matcher   matcher.Matcher
	builder   *payload.Builder
	store     *decision.Store
	threshold float64
}

// NewResolver wires a resolver. Pending decisions are inserted into store.
func NewResolver(idx *taxonomy.Index, m matcher.Matcher, b *payload.Builder, store *decision.Store, threshold float64) *Resolver {
	return &Resolver{
		index:     idx,
		matcher:   m,
		builder:   b,
		store:     store,
		threshold: threshold,
	}
}

// Resolve never returns an error to the caller; failures become skip states
// with the cause in Outcome.Err.
func (r *Resolver) Resolve(offer model.Offer) Outcome {
	if err := payload.Validate(offer); err != nil {
		return r.skip(offer, model.StateSkippedFieldMissing, err)
	}
	if _, err := payload.ParseMeasurements(offer); err != nil {
		return r.skip(offer, model.StateSkippedInvalid, err)
	}

	candidates := r.matcher.Rank(offer.Name, r.index)
	top := candidates.Top()
	if top == nil {
		return r.skip(offer, model.StateSkippedNoCandidates, nil)
	}

	if top.Similarity >= r.threshold {
		item, err := r.builder.Build(offer, top.TypeID, top.ResolvedDescriptionCategoryID())
		if err != nil {
			return r.skip(offer, model.StateSkippedInvalid, err)
		}
		slog.Debug("Offer auto-resolved",
			"offer_id", offer.ID,
			"type_name", top.TypeName,
			"similarity", top.Similarity)
		return Outcome{State: model.StateAutoResolved, Payload: &item}
	}

	pending := model.PendingDecision{
		ID:         decision.NewID(offer.ID),
		Offer:      offer,
		Candidates: candidates,
		Similarity: top.Similarity,
		CreatedAt:  time.Now(),
	}
	if err := r.store.Put(pending); err != nil {
		// Only possible on an id collision; treat the offer as unprocessable.
		return r.skip(offer, model.StateSkippedInvalid, err)
	}

	slog.Info("Offer needs a decision",
		"offer_id", offer.ID,
		"decision_id", pending.ID,
		"similarity", top.Similarity,
		"best", top.TypeName)
	return Outcome{State: model.StateAwaitingDecision, Decision: &pending}
}

// Finalize builds the payload for a human choice. A nil description
// category id falls back to the type id.
func (r *Resolver) Finalize(offer model.Offer, typeID int64, descriptionCategoryID *int64) Outcome {
	descID := typeID
	if descriptionCategoryID != nil {
		descID = *descriptionCategoryID
	}

	item, err := r.builder.Build(offer, typeID, descID)
	if err != nil {
		return r.skip(offer, model.StateSkippedInvalid, err)
	}
	return Outcome{State: model.StateResolvedByDecision, Payload: &item}
}

func (r *Resolver) skip(offer model.Offer, state model.ResolutionState, err error) Outcome {
	attrs := []any{"offer_id", offer.ID, "state", state}
	if err != nil {
		attrs = append(attrs, "reason", err)
	}
	if errors.Is(err, payload.ErrMissingField) {
		slog.Debug("Skipping offer", attrs...)
	} else {
		slog.Warn("Skipping offer", attrs...)
	}
	return Outcome{State: state, Err: err}
}
