package persistence

import (
	"context"
	"time"
)

// ResourceRepository stores the desk catalog.
type ResourceRepository interface {
	UpsertResource(ctx context.Context, resource Resource) error
	GetResource(ctx context.Context, id string) (Resource, error)
	ListResources(ctx context.Context) ([]Resource, error)
}

// BookingRepository stores reservations and enforces that bookings of one
// resource never overlap.
type BookingRepository interface {
	// FindBookings returns bookings of resourceID intersecting [from, to),
	// ordered by start then ID.
	FindBookings(ctx context.Context, resourceID string, from, to time.Time) ([]Booking, error)
	// InsertBookings stores every booking or none. It fails with
	// ErrConstraintViolation when any booking overlaps a stored booking or
	// another booking of the batch.
	InsertBookings(ctx context.Context, resourceID string, bookings []Booking) error
	GetBooking(ctx context.Context, id string) (Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// Store bundles the repositories a storage driver provides.
type Store interface {
	ResourceRepository
	BookingRepository
	Close() error
}
