package ratchet

import (
	"errors"
	"sync"
)

// ErrStoreClosed is returned by store operations after Close.
var ErrStoreClosed = errors.New("ratchet: store is closed")

// Store persists the evaluator's state and the run history between
// invocations. Implementations must be safe for concurrent use.
type Store interface {
	// LoadState returns the persisted state, or the zero State when none
	// has been saved yet.
	LoadState() (State, error)

	// SaveState replaces the persisted state.
	SaveState(st State) error

	// AppendRun adds one run to the history.
	AppendRun(run Run) error

	// Runs returns the history oldest first. A positive limit returns only
	// the most recent runs; zero returns everything.
	Runs(limit int) ([]Run, error)

	// Close releases resources held by the store.
	Close() error
}

// MemoryStore is an in-memory Store for testing and single-shot tooling.
// Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	state  State
	runs   []Run
	closed bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LoadState implements Store.
func (m *MemoryStore) LoadState() (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return State{}, ErrStoreClosed
	}
	return m.state.Clone(), nil
}

// SaveState implements Store.
func (m *MemoryStore) SaveState(st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.state = st.Clone()
	return nil
}

// AppendRun implements Store.
func (m *MemoryStore) AppendRun(run Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}
	m.runs = append(m.runs, run)
	return nil
}

// Runs implements Store.
func (m *MemoryStore) Runs(limit int) ([]Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	runs := m.runs
	if limit > 0 && len(runs) > limit {
		runs = runs[len(runs)-limit:]
	}
	out := make([]Run, len(runs))
	copy(out, runs)
	return out, nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.runs = nil
	m.state = State{}
	return nil
}

// Len returns the number of stored runs. Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.runs)
}
