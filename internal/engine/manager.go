package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// Manager owns the sessions of a process, keyed by id.
type Manager struct {
	sessions map[string]*Session
	deps     Dependencies
	defaults Params
	mu       sync.RWMutex
}

// NewManager creates a manager. The taxonomy index and matcher are required.
func NewManager(deps Dependencies, defaults Params) (*Manager, error) {
	if deps.Index == nil {
		return nil, fmt.Errorf("taxonomy index is required")
	}
	if deps.Matcher == nil {
		return nil, fmt.Errorf("matcher is required")
	}
	if deps.Builder == nil {
		return nil, fmt.Errorf("payload builder is required")
	}
	return &Manager{
		sessions: make(map[string]*Session),
		deps:     deps,
		defaults: defaults,
	}, nil
}

// Create registers a new idle session.
func (m *Manager) Create() *Session {
	s := NewSession(uuid.NewString(), m.deps, m.defaults)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s
	return s
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete removes a session. Its pending decisions are dropped.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.Reset()
	return nil
}

// IDs lists the registered session ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
