package model

import "time"

// ResolutionState is the outcome of resolving a single offer.
type ResolutionState string

// Resolution state constants.
const (
	StateSkippedFieldMissing ResolutionState = "SKIPPED_FIELD_MISSING"
	StateSkippedNoCandidates ResolutionState = "SKIPPED_NO_CANDIDATES"
	StateSkippedInvalid      ResolutionState = "SKIPPED_INVALID"
	StateAutoResolved        ResolutionState = "AUTO_RESOLVED"
	StateAwaitingDecision    ResolutionState = "AWAITING_DECISION"
	StateResolvedByDecision  ResolutionState = "RESOLVED_BY_DECISION"
	StateSkippedByUser       ResolutionState = "SKIPPED_BY_USER"
)

// Resolved reports whether the state produced a listing payload.
func (s ResolutionState) Resolved() bool {
	return s == StateAutoResolved || s == StateResolvedByDecision
}

// PendingDecision is a low-confidence match waiting for a human choice.
type PendingDecision struct {
	CreatedAt  time.Time  `json:"created_at"`
	ID         string     `json:"id"`
	Offer      Offer      `json:"offer"`
	Candidates Candidates `json:"candidates"`
	Similarity float64    `json:"similarity"`
}

// Suggestions returns at most n candidates for display.
func (d *PendingDecision) Suggestions(n int) Candidates {
	return d.Candidates.TopN(n)
}
