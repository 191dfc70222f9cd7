package core

import "errors"

// Sentinel errors shared across the engine and its storage adapters.
// All failure originates at the store boundary; the pure curve and catalog
// functions are total over well-formed input and never return these.
var (
	// ErrNotFound means the referenced user has no game state in the store.
	ErrNotFound = errors.New("user not found")

	// ErrAlreadyExists means a Create hit an existing record.
	ErrAlreadyExists = errors.New("user already exists")

	// ErrInvalidInput rejects bad arguments before any read or write.
	ErrInvalidInput = errors.New("invalid input")

	// ErrVersionMismatch is returned by adapters when a conditional write
	// observes a concurrency token other than the one read. The engine
	// recovers by retrying the full read-modify-write loop.
	ErrVersionMismatch = errors.New("version mismatch")

	// ErrContention is surfaced when the retry budget is exhausted. It is
	// transient: the award was not recorded and the caller should retry.
	ErrContention = errors.New("award contention: retries exhausted")
)
