package storage

import "errors"

// Sentinel errors shared by every backend. Callers match them with
// errors.Is; backends may wrap them with additional detail.
var (
	// ErrNotFound is returned when an entity id is absent on a read or
	// update path. Absence on list paths is an empty slice, not an error.
	ErrNotFound = errors.New("entity not found")

	// ErrInvalidState is returned when an operation is structurally valid
	// but the entities involved cannot support it, e.g. verifying an
	// already-consumed OTP or marking a best response on a request that
	// does not exist.
	ErrInvalidState = errors.New("invalid state for operation")

	// ErrBackendUnavailable is returned when a backend cannot be reached.
	// The runtime treats it as a signal to fall back to an in-memory
	// backend rather than failing the process.
	ErrBackendUnavailable = errors.New("storage backend unavailable")
)
