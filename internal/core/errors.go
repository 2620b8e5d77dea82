package core

import "errors"

// Error kinds shared by the engine, the record stores and the HTTP layer.
var (
	// ErrStoreUnavailable wraps any I/O failure against a record store.
	ErrStoreUnavailable = errors.New("record store unavailable")

	// ErrNotFound is returned by lookups of a single record that does not exist.
	// The engine never surfaces it: a missing budget or goal is a normal branch.
	ErrNotFound = errors.New("record not found")

	// ErrInvalidState marks data violating a store invariant, such as two
	// budgets for the same user, category and month.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict is returned when a write violates a uniqueness rule.
	ErrConflict = errors.New("record conflict")
)
