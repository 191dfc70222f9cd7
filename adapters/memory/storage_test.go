package memory

import (
	"context"
	"errors"
	"testing"

	"learnxp/core"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := core.UserID("u")

	if _, _, err := s.Load(ctx, user); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if err := s.Create(ctx, user); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, user); !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}

	state, version, err := s.Load(ctx, user)
	if err != nil || state.TotalXP != 0 || state.Level != 1 {
		t.Fatalf("unexpected zero state %+v err=%v", state, err)
	}

	state.TotalXP = 100
	state.Level = core.LevelFromXP(100)
	if err := s.Save(ctx, user, state, version); err != nil {
		t.Fatal(err)
	}
	got, _, _ := s.Load(ctx, user)
	if got.TotalXP != 100 {
		t.Fatalf("save not applied: %+v", got)
	}
}

func TestMemoryStoreVersionMismatch(t *testing.T) {
	s := New()
	ctx := context.Background()
	user := core.UserID("u")
	if err := s.Create(ctx, user); err != nil {
		t.Fatal(err)
	}

	state, version, _ := s.Load(ctx, user)
	state.TotalXP = 10
	if err := s.Save(ctx, user, state, version); err != nil {
		t.Fatal(err)
	}
	// stale token must be rejected
	state.TotalXP = 20
	if err := s.Save(ctx, user, state, version); !errors.Is(err, core.ErrVersionMismatch) {
		t.Fatalf("want ErrVersionMismatch, got %v", err)
	}
}
