// Package state owns the single shared mutable SprintState behind one
// mutex. All core components mutate the sprint through Store.Update;
// handler bodies run inside it end to end, broadcasts included, which is
// what keeps events ordered relative to the mutations that produced
// them.
package state

import (
	"sync"

	"github.com/albertnahas/teamclaude/pkg/models"
)

// Store serializes access to the SprintState. One instance per process.
type Store struct {
	mu    sync.Mutex
	state *models.SprintState
}

// NewStore returns a Store over a fresh idle state.
func NewStore() *Store {
	return &Store{state: models.NewSprintState()}
}

// Update runs fn with exclusive access to the state. fn must not block on
// I/O beyond bounded sends; long-running work (verification, webhooks,
// replay) belongs on its own goroutine, re-entering through Update when
// it has results to apply.
func (s *Store) Update(fn func(st *models.SprintState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.state)
}

// Snapshot returns a deep copy of the current state. Safe to marshal or
// inspect without holding the lock.
func (s *Store) Snapshot() *models.SprintState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}
