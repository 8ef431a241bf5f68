package statestore

import "errors"

// Sentinel errors the coordinator branches on.
var (
	// ErrStateCorruption is returned when the persisted document fails
	// strict decode or Validate() on load.
	ErrStateCorruption = errors.New("statestore: state corruption")
	// ErrIoError wraps filesystem failures (open/write/rename/lock).
	ErrIoError = errors.New("statestore: io error")
	// ErrVersionConflict is returned by Save when the in-memory version
	// is behind the version this Store last loaded or saved (optimistic
	// concurrency).
	ErrVersionConflict = errors.New("statestore: version conflict")
)
