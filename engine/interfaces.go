package engine

import (
	"context"

	"learnxp/core"
)

// Storage abstracts versioned persistence of per-user game state.
//
// Load returns the state together with a concurrency token. Save is
// conditional on that token and must fail with core.ErrVersionMismatch when
// another writer committed in between; the engine then retries its whole
// read-modify-write loop. The engine never writes without a preceding read,
// and a Save either applies the full state or nothing.
type Storage interface {
	// Create provisions the zero state for a new user.
	// Returns core.ErrAlreadyExists if the user already has state.
	Create(ctx context.Context, user core.UserID) error

	// Load returns the current state and its version token.
	// Returns core.ErrNotFound for unknown users.
	Load(ctx context.Context, user core.UserID) (core.UserGameState, core.Version, error)

	// Save writes state if the stored version still equals expected.
	Save(ctx context.Context, user core.UserID, state core.UserGameState, expected core.Version) error
}
