package application

import (
	"time"

	"github.com/example/deskbook/internal/booking"
	"github.com/example/deskbook/internal/recurrence"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID  string
	IsAdmin bool
}

// CreateBookingParams wraps the data required to reserve a resource once.
// UserID defaults to the principal.
type CreateBookingParams struct {
	Principal  Principal
	ResourceID string
	UserID     string
	Range      booking.TimeRange
}

// CreateRecurringBookingParams wraps the data required to reserve a series.
// UserID defaults to the principal.
type CreateRecurringBookingParams struct {
	Principal  Principal
	ResourceID string
	UserID     string
	Spec       recurrence.Spec
}

// WorkingHours is the fixed display window used for day availability.
// Start and End are offsets from local midnight in Location.
type WorkingHours struct {
	Location *time.Location
	Start    time.Duration
	End      time.Duration
}

// DefaultWorkingHours returns 09:00 to 17:00 UTC.
func DefaultWorkingHours() WorkingHours {
	return WorkingHours{Location: time.UTC, Start: 9 * time.Hour, End: 17 * time.Hour}
}

// Window returns the working-hours range of the calendar day containing date.
func (h WorkingHours) Window(date time.Time) booking.TimeRange {
	loc := h.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.In(loc).Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return booking.TimeRange{Start: midnight.Add(h.Start), End: midnight.Add(h.End)}
}
