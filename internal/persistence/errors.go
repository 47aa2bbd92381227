package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a record with the same identifier already exists.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrConstraintViolation is returned when a write would break a storage
	// invariant, most notably two overlapping bookings for one resource.
	ErrConstraintViolation = errors.New("persistence: constraint violation")
)
