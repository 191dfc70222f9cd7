package jsonfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"learnxp/core"
)

func TestStorePersistAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	store, err := New(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ctx := context.Background()
	if err := store.Create(ctx, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}

	state, version, err := store.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	state.TotalXP = 510
	state.Level = core.LevelFromXP(510)
	state.Badges["level-5"] = struct{}{}
	if err := store.Save(ctx, "alice", state, version); err != nil {
		t.Fatalf("save: %v", err)
	}

	// ensure file written
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file at %s", path)
	}

	// reload from disk
	reloaded, err := New(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got, _, err := reloaded.Load(ctx, "alice")
	if err != nil {
		t.Fatalf("load after reload: %v", err)
	}
	if got.TotalXP != 510 || got.Level != 5 {
		t.Fatalf("state not persisted: %+v", got)
	}
	if !got.HasBadge("level-5") {
		t.Fatalf("badge not persisted")
	}
}

func TestStoreFailedWriteLeavesStateUnchanged(t *testing.T) {
	dir := t.TempDir()
	parent := filepath.Join(dir, "d")
	path := filepath.Join(parent, "state.json")

	store, err := New(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Create(ctx, "alice"); err != nil {
		t.Fatal(err)
	}
	state, version, err := store.Load(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}

	// make the data directory unwritable by replacing it with a plain file
	if err := os.RemoveAll(parent); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(parent, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	state.TotalXP = 999
	state.Level = core.LevelFromXP(999)
	if err := store.Save(ctx, "alice", state, version); err == nil {
		t.Fatal("expected save to fail when the file cannot be written")
	}

	// a failed write must not partially apply
	got, gotVersion, err := store.Load(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalXP != 0 || got.Level != 1 {
		t.Fatalf("failed save leaked into state: %+v", got)
	}
	if gotVersion != version {
		t.Fatalf("failed save bumped version: got %d want %d", gotVersion, version)
	}

	// a failed create likewise leaves no record behind
	if err := store.Create(ctx, "bob"); err == nil {
		t.Fatal("expected create to fail when the file cannot be written")
	}
	if _, _, err := store.Load(ctx, "bob"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("failed create left a record: %v", err)
	}
}

func TestStoreVersioning(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	store, err := New(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := store.Create(ctx, "bob"); err != nil {
		t.Fatal(err)
	}
	if err := store.Create(ctx, "bob"); !errors.Is(err, core.ErrAlreadyExists) {
		t.Fatalf("want ErrAlreadyExists, got %v", err)
	}

	state, version, _ := store.Load(ctx, "bob")
	state.TotalXP = 10
	if err := store.Save(ctx, "bob", state, version); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "bob", state, version); !errors.Is(err, core.ErrVersionMismatch) {
		t.Fatalf("want ErrVersionMismatch, got %v", err)
	}
	if _, _, err := store.Load(ctx, "ghost"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
