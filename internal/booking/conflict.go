package booking

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// ErrConflict indicates a candidate range overlaps an existing reservation.
var ErrConflict = errors.New("booking: conflicts with an existing booking")

// Booking is a persisted reservation of a resource by a user.
type Booking struct {
	ID         string
	ResourceID string
	UserID     string
	SeriesID   string
	Range      TimeRange
	CreatedAt  time.Time
}

// ConflictError details which booking a candidate collided with. Occurrence is
// the zero-based index within a recurring series, or -1 for single bookings.
type ConflictError struct {
	Occurrence    int
	Candidate     TimeRange
	WithBookingID string
	With          TimeRange
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	if e == nil {
		return ErrConflict.Error()
	}
	target := e.WithBookingID
	if target == "" {
		target = "an earlier occurrence"
	}
	if e.Occurrence >= 0 {
		return fmt.Sprintf("booking: occurrence %d %s conflicts with %s %s", e.Occurrence, e.Candidate, target, e.With)
	}
	return fmt.Sprintf("booking: %s conflicts with %s %s", e.Candidate, target, e.With)
}

// Is lets errors.Is match ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// FindConflict returns the earliest existing booking that strictly intersects candidate.
func FindConflict(candidate TimeRange, existing []Booking) (Booking, bool) {
	var (
		found Booking
		ok    bool
	)
	for _, b := range existing {
		if !b.Range.Overlaps(candidate) {
			continue
		}
		if !ok || earlier(b, found) {
			found, ok = b, true
		}
	}
	return found, ok
}

// Validate checks a proposed range against the existing bookings of the same
// resource. Range errors are reported before any conflict.
func Validate(candidate TimeRange, existing []Booking) error {
	if err := candidate.Validate(); err != nil {
		return err
	}
	if b, ok := FindConflict(candidate, existing); ok {
		return &ConflictError{
			Occurrence:    -1,
			Candidate:     candidate,
			WithBookingID: b.ID,
			With:          b.Range,
		}
	}
	return nil
}

// SortBookings orders bookings by start, then ID.
func SortBookings(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		return earlier(bookings[i], bookings[j])
	})
}

func earlier(a, b Booking) bool {
	if a.Range.Start.Equal(b.Range.Start) {
		return a.ID < b.ID
	}
	return a.Range.Start.Before(b.Range.Start)
}
