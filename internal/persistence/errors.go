package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a create collides with an existing record.
	ErrDuplicate = errors.New("persistence: duplicate record")
)
