package lifecycle

import "errors"

var (
	// ErrInvalidTransition is returned when an action is illegal for the
	// report's current status
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidStatus is returned when a status is not a known lifecycle status
	ErrInvalidStatus = errors.New("invalid status")
)
