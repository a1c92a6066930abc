// Package decision holds low-confidence matches waiting for a human choice.
package decision

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/Veraticus/catalog-mapper/internal/model"
)

var (
	// ErrDecisionNotFound is returned when an id is not in the store.
	ErrDecisionNotFound = errors.New("decision not found")
	// ErrDuplicateDecision is returned when an id is inserted twice.
	ErrDuplicateDecision = errors.New("decision already exists")
)

// NewID derives a decision id from the offer id plus a random suffix so that
// repeated offer ids still produce distinct, URL-safe ids.
func NewID(offerID string) string {
	if offerID == "" {
		offerID = "unknown"
	}
	return url.PathEscape(offerID) + "_" + uuid.NewString()[:8]
}

// Store is an in-memory map of pending decisions. Entries never expire; they
// stay until taken or the store is reset.
type Store struct {
	decisions map[string]model.PendingDecision
	mu        sync.RWMutex
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{decisions: make(map[string]model.PendingDecision)}
}

// Put inserts a decision. Each id may be inserted once.
func (s *Store) Put(d model.PendingDecision) error {
	if d.ID == "" {
		return fmt.Errorf("decision ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.decisions[d.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateDecision, d.ID)
	}

	d.Candidates = slices.Clone(d.Candidates)
	s.decisions[d.ID] = d
	return nil
}

// Get returns a copy of the decision without removing it.
func (s *Store) Get(id string) (model.PendingDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, exists := s.decisions[id]
	if !exists {
		return model.PendingDecision{}, fmt.Errorf("%w: %s", ErrDecisionNotFound, id)
	}

	d.Candidates = slices.Clone(d.Candidates)
	return d, nil
}

// Take removes and returns the decision. A second Take of the same id fails.
func (s *Store) Take(id string) (model.PendingDecision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, exists := s.decisions[id]
	if !exists {
		return model.PendingDecision{}, fmt.Errorf("%w: %s", ErrDecisionNotFound, id)
	}

	delete(s.decisions, id)
	return d, nil
}

// IDs returns the ids of all stored decisions, sorted.
func (s *Store) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.decisions))
	for id := range s.decisions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Len returns the number of stored decisions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.decisions)
}

// Reset drops every decision.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decisions = make(map[string]model.PendingDecision)
}
