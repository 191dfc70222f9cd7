package memory

import (
	"context"
	"sync"
	"time"

	"learnxp/core"
)

// Store is a concurrent in-memory Storage implementation with per-user
// optimistic versioning. Useful for tests and single-process deployments.
type Store struct {
	users sync.Map // map[core.UserID]*userRecord
}

type userRecord struct {
	mu      sync.Mutex
	state   core.UserGameState
	version core.Version
}

func New() *Store { return &Store{} }

func (s *Store) Create(_ context.Context, user core.UserID) error {
	rec := &userRecord{state: core.NewUserGameState(user), version: 1}
	if _, loaded := s.users.LoadOrStore(user, rec); loaded {
		return core.ErrAlreadyExists
	}
	return nil
}

func (s *Store) Load(_ context.Context, user core.UserID) (core.UserGameState, core.Version, error) {
	v, ok := s.users.Load(user)
	if !ok {
		return core.UserGameState{}, 0, core.ErrNotFound
	}
	rec := v.(*userRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.state.Clone(), rec.version, nil
}

func (s *Store) Save(_ context.Context, user core.UserID, state core.UserGameState, expected core.Version) error {
	v, ok := s.users.Load(user)
	if !ok {
		return core.ErrNotFound
	}
	rec := v.(*userRecord)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.version != expected {
		return core.ErrVersionMismatch
	}
	state.Updated = time.Now().UTC()
	rec.state = state.Clone()
	rec.version++
	return nil
}
