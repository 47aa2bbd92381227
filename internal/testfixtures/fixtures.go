package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/deskbook/internal/booking"
	"github.com/example/deskbook/internal/persistence"
)

var (
	resourceCounter uint64
	bookingCounter  uint64
)

// referenceTime is a Monday morning so weekly series line up with weekdays.
var referenceTime = time.Date(2024, time.March, 4, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// At returns the reference day at hour h and minute m, UTC.
func At(h, m int) time.Time {
	y, mo, d := referenceTime.Date()
	return time.Date(y, mo, d, h, m, 0, 0, time.UTC)
}

// Range returns [At(startHour, 0), At(endHour, 0)).
func Range(startHour, endHour int) booking.TimeRange {
	return booking.TimeRange{Start: At(startHour, 0), End: At(endHour, 0)}
}

// ---------------------------- Resource fixtures ----------------------------

// ResourceFixture represents a deterministic desk.
type ResourceFixture struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// ResourceOption configures the generated resource fixture.
type ResourceOption func(*ResourceFixture)

// NewResourceFixture returns a deterministic resource fixture with optional overrides.
func NewResourceFixture(opts ...ResourceOption) ResourceFixture {
	idx := atomic.AddUint64(&resourceCounter, 1)
	fixture := ResourceFixture{
		ID:        fmt.Sprintf("desk-%03d", idx),
		Name:      fmt.Sprintf("Desk %03d", idx),
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithResourceID overrides the generated resource ID.
func WithResourceID(id string) ResourceOption {
	return func(f *ResourceFixture) {
		f.ID = id
	}
}

// WithResourceName overrides the generated name.
func WithResourceName(name string) ResourceOption {
	return func(f *ResourceFixture) {
		f.Name = name
	}
}

// Persistence converts the fixture into a persistence record.
func (f ResourceFixture) Persistence() persistence.Resource {
	return persistence.Resource{ID: f.ID, Name: f.Name, CreatedAt: f.CreatedAt}
}

// ----------------------------- Booking fixtures -----------------------------

// BookingFixture represents a deterministic reservation.
type BookingFixture struct {
	ID         string
	ResourceID string
	UserID     string
	SeriesID   string
	Range      booking.TimeRange
	CreatedAt  time.Time
}

// BookingOption configures the generated booking fixture.
type BookingOption func(*BookingFixture)

// NewBookingFixture returns a booking of desk-1 by user-1 from 10:00 to 11:00
// on the reference day, with optional overrides.
func NewBookingFixture(opts ...BookingOption) BookingFixture {
	idx := atomic.AddUint64(&bookingCounter, 1)
	fixture := BookingFixture{
		ID:         fmt.Sprintf("booking-%03d", idx),
		ResourceID: "desk-1",
		UserID:     "user-1",
		Range:      Range(10, 11),
		CreatedAt:  referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithBookingID overrides the generated booking ID.
func WithBookingID(id string) BookingOption {
	return func(f *BookingFixture) {
		f.ID = id
	}
}

// WithBookingResource overrides the booked resource.
func WithBookingResource(resourceID string) BookingOption {
	return func(f *BookingFixture) {
		f.ResourceID = resourceID
	}
}

// WithBookingUser overrides the booking owner.
func WithBookingUser(userID string) BookingOption {
	return func(f *BookingFixture) {
		f.UserID = userID
	}
}

// WithBookingSeries marks the booking as part of a series.
func WithBookingSeries(seriesID string) BookingOption {
	return func(f *BookingFixture) {
		f.SeriesID = seriesID
	}
}

// WithBookingRange overrides the reserved range.
func WithBookingRange(r booking.TimeRange) BookingOption {
	return func(f *BookingFixture) {
		f.Range = r
	}
}

// WithBookingHours sets the range to [At(start, 0), At(end, 0)).
func WithBookingHours(start, end int) BookingOption {
	return WithBookingRange(Range(start, end))
}

// Booking converts the fixture into a booking value.
func (f BookingFixture) Booking() booking.Booking {
	return booking.Booking{
		ID:         f.ID,
		ResourceID: f.ResourceID,
		UserID:     f.UserID,
		SeriesID:   f.SeriesID,
		Range:      f.Range,
		CreatedAt:  f.CreatedAt,
	}
}

// Persistence converts the fixture into a persistence record.
func (f BookingFixture) Persistence() persistence.Booking {
	return persistence.Booking{
		ID:         f.ID,
		ResourceID: f.ResourceID,
		UserID:     f.UserID,
		SeriesID:   f.SeriesID,
		StartAt:    f.Range.Start,
		EndAt:      f.Range.End,
		CreatedAt:  f.CreatedAt,
	}
}
