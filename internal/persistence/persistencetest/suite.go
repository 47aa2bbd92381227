// Package persistencetest holds the behaviour every persistence.Store driver must share.
package persistencetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/deskbook/internal/persistence"
)

// Factory returns a fresh, empty, migrated store. The suite closes it.
type Factory func(t *testing.T) persistence.Store

// Base is the day used by every booking built in the suite.
var Base = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

// Hour returns Base plus h hours.
func Hour(h int) time.Time {
	return Base.Add(time.Duration(h) * time.Hour)
}

// NewBooking builds a booking of resourceID over [Hour(start), Hour(end)).
func NewBooking(id, resourceID string, start, end int) persistence.Booking {
	return persistence.Booking{
		ID:         id,
		ResourceID: resourceID,
		UserID:     "user-1",
		StartAt:    Hour(start),
		EndAt:      Hour(end),
		CreatedAt:  Base,
	}
}

// Run exercises a store against the shared repository contract.
func Run(t *testing.T, factory Factory) {
	t.Helper()

	open := func(t *testing.T) (context.Context, persistence.Store) {
		t.Helper()
		store := factory(t)
		t.Cleanup(func() { _ = store.Close() })
		ctx := context.Background()
		for _, id := range []string{"desk-1", "desk-2"} {
			if err := store.UpsertResource(ctx, persistence.Resource{ID: id, Name: "Desk " + id, CreatedAt: Base}); err != nil {
				t.Fatalf("UpsertResource(%s) failed: %v", id, err)
			}
		}
		return ctx, store
	}

	t.Run("resources", func(t *testing.T) {
		ctx, store := open(t)

		if err := store.UpsertResource(ctx, persistence.Resource{ID: "desk-1", Name: "Window desk", CreatedAt: Base}); err != nil {
			t.Fatalf("UpsertResource failed: %v", err)
		}
		got, err := store.GetResource(ctx, "desk-1")
		if err != nil {
			t.Fatalf("GetResource failed: %v", err)
		}
		if got.Name != "Window desk" {
			t.Fatalf("expected upsert to rename desk, got %q", got.Name)
		}
		if _, err := store.GetResource(ctx, "missing"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		all, err := store.ListResources(ctx)
		if err != nil {
			t.Fatalf("ListResources failed: %v", err)
		}
		if len(all) != 2 || all[0].ID != "desk-1" || all[1].ID != "desk-2" {
			t.Fatalf("unexpected resources %#v", all)
		}
	})

	t.Run("insert then find", func(t *testing.T) {
		ctx, store := open(t)

		batch := []persistence.Booking{
			NewBooking("b-2", "desk-1", 13, 14),
			NewBooking("b-1", "desk-1", 10, 11),
		}
		batch[0].SeriesID = "series-1"
		if err := store.InsertBookings(ctx, "desk-1", batch); err != nil {
			t.Fatalf("InsertBookings failed: %v", err)
		}
		if err := store.InsertBookings(ctx, "desk-2", []persistence.Booking{NewBooking("b-3", "desk-2", 10, 11)}); err != nil {
			t.Fatalf("InsertBookings failed: %v", err)
		}

		found, err := store.FindBookings(ctx, "desk-1", Hour(9), Hour(17))
		if err != nil {
			t.Fatalf("FindBookings failed: %v", err)
		}
		if len(found) != 2 || found[0].ID != "b-1" || found[1].ID != "b-2" {
			t.Fatalf("expected b-1 then b-2, got %#v", found)
		}
		if !found[0].StartAt.Equal(Hour(10)) || !found[0].EndAt.Equal(Hour(11)) {
			t.Fatalf("unexpected range %v-%v", found[0].StartAt, found[0].EndAt)
		}
		if found[1].SeriesID != "series-1" {
			t.Fatalf("expected series id to round-trip, got %q", found[1].SeriesID)
		}

		touching, err := store.FindBookings(ctx, "desk-1", Hour(11), Hour(13))
		if err != nil {
			t.Fatalf("FindBookings failed: %v", err)
		}
		if len(touching) != 0 {
			t.Fatalf("bookings touching the window must not be returned, got %#v", touching)
		}

		got, err := store.GetBooking(ctx, "b-3")
		if err != nil {
			t.Fatalf("GetBooking failed: %v", err)
		}
		if got.ResourceID != "desk-2" || got.UserID != "user-1" {
			t.Fatalf("unexpected booking %#v", got)
		}
	})

	t.Run("microsecond bounds round-trip", func(t *testing.T) {
		ctx, store := open(t)

		b := NewBooking("b-1", "desk-1", 10, 11)
		b.StartAt = b.StartAt.Add(123456 * time.Microsecond)
		b.EndAt = b.EndAt.Add(654321 * time.Microsecond)
		if err := store.InsertBookings(ctx, "desk-1", []persistence.Booking{b}); err != nil {
			t.Fatalf("InsertBookings failed: %v", err)
		}
		got, err := store.GetBooking(ctx, "b-1")
		if err != nil {
			t.Fatalf("GetBooking failed: %v", err)
		}
		if !got.StartAt.Equal(b.StartAt) || !got.EndAt.Equal(b.EndAt) {
			t.Fatalf("expected %v-%v, got %v-%v", b.StartAt, b.EndAt, got.StartAt, got.EndAt)
		}
	})

	t.Run("rejects overlap with stored booking", func(t *testing.T) {
		ctx, store := open(t)

		if err := store.InsertBookings(ctx, "desk-1", []persistence.Booking{NewBooking("b-1", "desk-1", 10, 12)}); err != nil {
			t.Fatalf("InsertBookings failed: %v", err)
		}
		err := store.InsertBookings(ctx, "desk-1", []persistence.Booking{
			NewBooking("b-2", "desk-1", 8, 9),
			NewBooking("b-3", "desk-1", 11, 13),
		})
		if !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
		assertCount(ctx, t, store, "desk-1", 1)

		// Adjacent ranges and other resources are unaffected.
		if err := store.InsertBookings(ctx, "desk-1", []persistence.Booking{NewBooking("b-4", "desk-1", 12, 13)}); err != nil {
			t.Fatalf("adjacent booking rejected: %v", err)
		}
		if err := store.InsertBookings(ctx, "desk-2", []persistence.Booking{NewBooking("b-5", "desk-2", 10, 12)}); err != nil {
			t.Fatalf("other resource rejected: %v", err)
		}
	})

	t.Run("rejects overlapping siblings", func(t *testing.T) {
		ctx, store := open(t)

		err := store.InsertBookings(ctx, "desk-1", []persistence.Booking{
			NewBooking("b-1", "desk-1", 10, 12),
			NewBooking("b-2", "desk-1", 11, 13),
		})
		if !errors.Is(err, persistence.ErrConstraintViolation) {
			t.Fatalf("expected ErrConstraintViolation, got %v", err)
		}
		assertCount(ctx, t, store, "desk-1", 0)
	})

	t.Run("delete booking", func(t *testing.T) {
		ctx, store := open(t)

		if err := store.InsertBookings(ctx, "desk-1", []persistence.Booking{NewBooking("b-1", "desk-1", 10, 12)}); err != nil {
			t.Fatalf("InsertBookings failed: %v", err)
		}
		if err := store.DeleteBooking(ctx, "b-1"); err != nil {
			t.Fatalf("DeleteBooking failed: %v", err)
		}
		if err := store.DeleteBooking(ctx, "b-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if _, err := store.GetBooking(ctx, "b-1"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if err := store.InsertBookings(ctx, "desk-1", []persistence.Booking{NewBooking("b-2", "desk-1", 10, 12)}); err != nil {
			t.Fatalf("freed range rejected: %v", err)
		}
	})

	t.Run("concurrent overlapping inserts admit exactly one", func(t *testing.T) {
		ctx, store := open(t)

		const writers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			succeeded int
			conflicts int
			others    []error
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				b := NewBooking(fmt.Sprintf("c-%d", i), "desk-1", 10, 11)
				b.StartAt = b.StartAt.Add(time.Duration(i) * time.Minute)
				err := store.InsertBookings(ctx, "desk-1", []persistence.Booking{b})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, persistence.ErrConstraintViolation):
					conflicts++
				default:
					others = append(others, err)
				}
			}(i)
		}
		wg.Wait()

		if len(others) > 0 {
			t.Fatalf("unexpected errors: %v", others)
		}
		if succeeded != 1 || conflicts != writers-1 {
			t.Fatalf("expected 1 success and %d conflicts, got %d and %d", writers-1, succeeded, conflicts)
		}
		assertCount(ctx, t, store, "desk-1", 1)
	})

	t.Run("cancelled context leaves no rows", func(t *testing.T) {
		_, store := open(t)

		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		if err := store.InsertBookings(cancelled, "desk-1", []persistence.Booking{NewBooking("b-1", "desk-1", 10, 11)}); err == nil {
			t.Fatal("expected cancelled insert to fail")
		}
		assertCount(context.Background(), t, store, "desk-1", 0)
	})
}

func assertCount(ctx context.Context, t *testing.T, store persistence.Store, resourceID string, want int) {
	t.Helper()
	found, err := store.FindBookings(ctx, resourceID, Base, Base.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("FindBookings failed: %v", err)
	}
	if len(found) != want {
		t.Fatalf("expected %d bookings for %s, got %d: %#v", want, resourceID, len(found), found)
	}
}
