package port

import "errors"

var (
	// ErrNotFound is returned when a requested record does not exist
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyExists is returned when a unique constraint rejects a create
	ErrAlreadyExists = errors.New("record already exists")

	// ErrDuplicateEvent is returned when a notification row already exists
	// for a transition event key
	ErrDuplicateEvent = errors.New("duplicate transition event")

	// ErrStoreUnavailable is returned for transient storage failures; the
	// caller may retry the whole operation
	ErrStoreUnavailable = errors.New("store unavailable")
)
