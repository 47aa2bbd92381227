package application

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/example/deskbook/internal/booking"
	"github.com/example/deskbook/internal/persistence"
	"github.com/example/deskbook/internal/recurrence"
)

var (
	// ErrInvalidRange is returned when a range does not start strictly before it ends.
	ErrInvalidRange = booking.ErrInvalidRange
	// ErrConflict is returned when a booking would overlap a stored booking or a sibling occurrence.
	ErrConflict = booking.ErrConflict
	// ErrInvalidRecurrence is returned for unknown cadences or out-of-range occurrence counts.
	ErrInvalidRecurrence = recurrence.ErrInvalidRecurrence
	// ErrUnauthenticated is returned when no principal accompanies the call.
	ErrUnauthenticated = errors.New("application: unauthenticated")
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource or booking does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when a booking identifier is already taken.
	ErrAlreadyExists = errors.New("application: already exists")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for field := range v.FieldErrors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation failed: " + strings.Join(fields, ", ")
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyExists) {
		return err
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	// Another writer committed an overlapping booking after validation.
	if errors.Is(err, persistence.ErrConstraintViolation) {
		return fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return err
}
