package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"learnxp/core"
)

// Store persists entire state to a single JSON file.
// Suitable for demos and small deployments. Versioning is kept in-process;
// the file is the system of record for state, not for the tokens.
type Store struct {
	path string
	mu   sync.Mutex
	data map[core.UserID]*entry
}

type entry struct {
	State   core.UserGameState `json:"state"`
	Version core.Version       `json:"version"`
}

func New(path string) (*Store, error) {
	s := &Store{path: path, data: map[core.UserID]*entry{}}
	if err := s.load(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	var raw map[string]*entry
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		if v.State.Badges == nil {
			v.State.Badges = map[core.Badge]struct{}{}
		}
		s.data[core.UserID(k)] = v
	}
	return nil
}

func (s *Store) persist() error {
	tmp := s.path + ".tmp"
	raw := make(map[string]*entry, len(s.data))
	for k, v := range s.data {
		raw[string(k)] = v
	}
	b, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *Store) Create(_ context.Context, user core.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[user]; ok {
		return core.ErrAlreadyExists
	}
	s.data[user] = &entry{State: core.NewUserGameState(user), Version: 1}
	if err := s.persist(); err != nil {
		delete(s.data, user)
		return err
	}
	return nil
}

func (s *Store) Load(_ context.Context, user core.UserID) (core.UserGameState, core.Version, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[user]
	if !ok {
		return core.UserGameState{}, 0, core.ErrNotFound
	}
	return e.State.Clone(), e.Version, nil
}

func (s *Store) Save(_ context.Context, user core.UserID, state core.UserGameState, expected core.Version) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[user]
	if !ok {
		return core.ErrNotFound
	}
	if e.Version != expected {
		return core.ErrVersionMismatch
	}
	state.Updated = time.Now().UTC()
	// stage the change and roll back if the file write fails, so readers
	// never observe state the disk did not accept
	prev := *e
	e.State = state.Clone()
	e.Version++
	if err := s.persist(); err != nil {
		*e = prev
		return err
	}
	return nil
}
