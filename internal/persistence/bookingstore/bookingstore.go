// Package bookingstore exposes a persistence.Store through the repository
// interfaces the application services consume.
package bookingstore

import (
	"context"
	"errors"

	"github.com/example/deskbook/internal/booking"
	"github.com/example/deskbook/internal/persistence"
)

// Adapter converts between persistence models and booking values.
type Adapter struct {
	store persistence.Store
}

// New wraps store.
func New(store persistence.Store) *Adapter {
	return &Adapter{store: store}
}

// FindBookings returns the bookings of resourceID intersecting window.
func (a *Adapter) FindBookings(ctx context.Context, resourceID string, window booking.TimeRange) ([]booking.Booking, error) {
	stored, err := a.store.FindBookings(ctx, resourceID, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	out := make([]booking.Booking, 0, len(stored))
	for _, b := range stored {
		out = append(out, ToBooking(b))
	}
	return out, nil
}

// InsertBookings stores the batch atomically.
func (a *Adapter) InsertBookings(ctx context.Context, resourceID string, bookings []booking.Booking) error {
	records := make([]persistence.Booking, 0, len(bookings))
	for _, b := range bookings {
		records = append(records, ToPersistence(b))
	}
	return a.store.InsertBookings(ctx, resourceID, records)
}

// GetBooking retrieves a booking by ID.
func (a *Adapter) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	stored, err := a.store.GetBooking(ctx, id)
	if err != nil {
		return booking.Booking{}, err
	}
	return ToBooking(stored), nil
}

// DeleteBooking removes a booking by ID.
func (a *Adapter) DeleteBooking(ctx context.Context, id string) error {
	return a.store.DeleteBooking(ctx, id)
}

// ResourceExists reports whether the desk is in the catalog.
func (a *Adapter) ResourceExists(ctx context.Context, id string) (bool, error) {
	if _, err := a.store.GetResource(ctx, id); err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ToBooking converts a stored row to a booking value.
func ToBooking(b persistence.Booking) booking.Booking {
	return booking.Booking{
		ID:         b.ID,
		ResourceID: b.ResourceID,
		UserID:     b.UserID,
		SeriesID:   b.SeriesID,
		Range:      booking.TimeRange{Start: b.StartAt, End: b.EndAt},
		CreatedAt:  b.CreatedAt,
	}
}

// ToPersistence converts a booking value to its stored form.
func ToPersistence(b booking.Booking) persistence.Booking {
	return persistence.Booking{
		ID:         b.ID,
		ResourceID: b.ResourceID,
		UserID:     b.UserID,
		SeriesID:   b.SeriesID,
		StartAt:    b.Range.Start,
		EndAt:      b.Range.End,
		CreatedAt:  b.CreatedAt,
	}
}
