package application_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/example/deskbook/internal/application"
	"github.com/example/deskbook/internal/booking"
	"github.com/example/deskbook/internal/persistence"
	"github.com/example/deskbook/internal/persistence/bookingstore"
	"github.com/example/deskbook/internal/persistence/memory"
	"github.com/example/deskbook/internal/recurrence"
	"github.com/example/deskbook/internal/testfixtures"
)

type stubBookingRepo struct {
	mu        sync.Mutex
	existing  []booking.Booking
	findCalls int
	inserted  [][]booking.Booking
	insertErr error
	getResult booking.Booking
	getErr    error
	deleted   []string
}

func (s *stubBookingRepo) FindBookings(ctx context.Context, resourceID string, window booking.TimeRange) ([]booking.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findCalls++
	var out []booking.Booking
	for _, b := range s.existing {
		if b.ResourceID == resourceID && b.Range.Overlaps(window) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubBookingRepo) InsertBookings(ctx context.Context, resourceID string, bookings []booking.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	s.inserted = append(s.inserted, bookings)
	return nil
}

func (s *stubBookingRepo) GetBooking(ctx context.Context, id string) (booking.Booking, error) {
	return s.getResult, s.getErr
}

func (s *stubBookingRepo) DeleteBooking(ctx context.Context, id string) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type stubCatalog map[string]bool

func (c stubCatalog) ResourceExists(ctx context.Context, id string) (bool, error) {
	return c[id], nil
}

var alice = application.Principal{UserID: "alice"}

func newService(repo application.BookingRepository) *application.BookingService {
	factory := testfixtures.NewServiceFactory(testfixtures.WithIDGenerator(testfixtures.NewIDGenerator("b")))
	return factory.NewBookingService(testfixtures.BookingServiceDeps{
		Bookings:  repo,
		Resources: stubCatalog{"desk-1": true},
	})
}

func weekly(count int, first booking.TimeRange) recurrence.Spec {
	return recurrence.Spec{Pattern: recurrence.Weekly{OccurrenceCount: count}, First: first}
}

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("stores a free range for the principal", func(t *testing.T) {
		repo := &stubBookingRepo{}
		svc := newService(repo)

		created, err := svc.CreateBooking(ctx, application.CreateBookingParams{
			Principal:  alice,
			ResourceID: "desk-1",
			Range:      testfixtures.Range(10, 11),
		})
		if err != nil {
			t.Fatalf("CreateBooking returned error: %v", err)
		}
		if created.ID != "b-1" || created.UserID != "alice" || created.SeriesID != "" {
			t.Fatalf("unexpected booking: %+v", created)
		}
		if len(repo.inserted) != 1 || len(repo.inserted[0]) != 1 {
			t.Fatalf("expected one single-booking batch, got %+v", repo.inserted)
		}
	})

	t.Run("rejects an overlap with a stored booking", func(t *testing.T) {
		stored := testfixtures.NewBookingFixture(testfixtures.WithBookingID("existing"), testfixtures.WithBookingHours(10, 12)).Booking()
		repo := &stubBookingRepo{existing: []booking.Booking{stored}}
		svc := newService(repo)

		_, err := svc.CreateBooking(ctx, application.CreateBookingParams{
			Principal:  alice,
			ResourceID: "desk-1",
			Range:      testfixtures.Range(11, 13),
		})
		var conflict *booking.ConflictError
		if !errors.As(err, &conflict) || conflict.WithBookingID != "existing" || conflict.Occurrence != -1 {
			t.Fatalf("expected conflict with existing, got %v", err)
		}
		if !errors.Is(err, application.ErrConflict) {
			t.Fatalf("expected errors.Is ErrConflict")
		}
		if len(repo.inserted) != 0 {
			t.Fatalf("expected no insert, got %+v", repo.inserted)
		}
	})

	t.Run("accepts a range touching a stored booking", func(t *testing.T) {
		stored := testfixtures.NewBookingFixture(testfixtures.WithBookingHours(10, 11)).Booking()
		repo := &stubBookingRepo{existing: []booking.Booking{stored}}
		svc := newService(repo)

		if _, err := svc.CreateBooking(ctx, application.CreateBookingParams{
			Principal:  alice,
			ResourceID: "desk-1",
			Range:      testfixtures.Range(11, 12),
		}); err != nil {
			t.Fatalf("expected adjacent booking to succeed, got %v", err)
		}
	})

	t.Run("empty range never reaches the repository", func(t *testing.T) {
		repo := &stubBookingRepo{}
		svc := newService(repo)

		_, err := svc.CreateBooking(ctx, application.CreateBookingParams{
			Principal:  alice,
			ResourceID: "desk-1",
			Range:      booking.TimeRange{Start: testfixtures.At(10, 0), End: testfixtures.At(10, 0)},
		})
		if !errors.Is(err, application.ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange, got %v", err)
		}
		if repo.findCalls != 0 || len(repo.inserted) != 0 {
			t.Fatalf("expected no repository calls, got find=%d insert=%d", repo.findCalls, len(repo.inserted))
		}
	})

	t.Run("unknown resource", func(t *testing.T) {
		svc := newService(&stubBookingRepo{})
		_, err := svc.CreateBooking(ctx, application.CreateBookingParams{
			Principal:  alice,
			ResourceID: "desk-9",
			Range:      testfixtures.Range(10, 11),
		})
		if !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("missing resource id", func(t *testing.T) {
		svc := newService(&stubBookingRepo{})
		_, err := svc.CreateBooking(ctx, application.CreateBookingParams{Principal: alice, Range: testfixtures.Range(10, 11)})
		var vErr *application.ValidationError
		if !errors.As(err, &vErr) || vErr.FieldErrors["resource_id"] == "" {
			t.Fatalf("expected resource_id validation error, got %v", err)
		}
	})

	t.Run("requires a principal", func(t *testing.T) {
		svc := newService(&stubBookingRepo{})
		_, err := svc.CreateBooking(ctx, application.CreateBookingParams{ResourceID: "desk-1", Range: testfixtures.Range(10, 11)})
		if !errors.Is(err, application.ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated, got %v", err)
		}
	})

	t.Run("booking for another user requires admin", func(t *testing.T) {
		repo := &stubBookingRepo{}
		svc := newService(repo)
		params := application.CreateBookingParams{
			Principal:  alice,
			ResourceID: "desk-1",
			UserID:     "bob",
			Range:      testfixtures.Range(10, 11),
		}
		if _, err := svc.CreateBooking(ctx, params); !errors.Is(err, application.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}

		params.Principal = application.Principal{UserID: "admin", IsAdmin: true}
		created, err := svc.CreateBooking(ctx, params)
		if err != nil {
			t.Fatalf("expected admin to book for bob, got %v", err)
		}
		if created.UserID != "bob" {
			t.Fatalf("expected booking owned by bob, got %q", created.UserID)
		}
	})

	t.Run("duplicate booking id surfaces as already exists", func(t *testing.T) {
		repo := &stubBookingRepo{insertErr: fmt.Errorf("insert b-1: %w", persistence.ErrDuplicate)}
		_, err := newService(repo).CreateBooking(ctx, application.CreateBookingParams{
			Principal:  alice,
			ResourceID: "desk-1",
			Range:      testfixtures.Range(10, 11),
		})
		if !errors.Is(err, application.ErrAlreadyExists) {
			t.Fatalf("expected ErrAlreadyExists, got %v", err)
		}
		if errors.Is(err, application.ErrConflict) {
			t.Fatalf("duplicate id must not read as a time conflict: %v", err)
		}
	})

	t.Run("bounds are stored at microsecond precision", func(t *testing.T) {
		repo := &stubBookingRepo{}
		start := testfixtures.At(10, 0).Add(123456789 * time.Nanosecond)
		created, err := newService(repo).CreateBooking(ctx, application.CreateBookingParams{
			Principal:  alice,
			ResourceID: "desk-1",
			Range:      booking.TimeRange{Start: start, End: testfixtures.At(11, 0).Add(999 * time.Nanosecond)},
		})
		if err != nil {
			t.Fatalf("CreateBooking returned error: %v", err)
		}
		want := booking.TimeRange{Start: testfixtures.At(10, 0).Add(123456 * time.Microsecond), End: testfixtures.At(11, 0)}
		if !created.Range.Equal(want) || !repo.inserted[0][0].Range.Equal(want) {
			t.Fatalf("expected %v, got %v", want, created.Range)
		}
	})

	t.Run("sub-microsecond range is invalid", func(t *testing.T) {
		repo := &stubBookingRepo{}
		_, err := newService(repo).CreateBooking(ctx, application.CreateBookingParams{
			Principal:  alice,
			ResourceID: "desk-1",
			Range:      booking.TimeRange{Start: testfixtures.At(10, 0), End: testfixtures.At(10, 0).Add(500 * time.Nanosecond)},
		})
		if !errors.Is(err, application.ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange, got %v", err)
		}
		if len(repo.inserted) != 0 {
			t.Fatalf("expected nothing stored, got %v", repo.inserted)
		}
	})

	t.Run("commit-time constraint violation surfaces as conflict", func(t *testing.T) {
		repo := &stubBookingRepo{insertErr: fmt.Errorf("insert: %w", persistence.ErrConstraintViolation)}
		svc := newService(repo)
		_, err := svc.CreateBooking(ctx, application.CreateBookingParams{
			Principal:  alice,
			ResourceID: "desk-1",
			Range:      testfixtures.Range(10, 11),
		})
		if !errors.Is(err, application.ErrConflict) {
			t.Fatalf("expected ErrConflict, got %v", err)
		}
	})
}

func TestCreateRecurringBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("stores every occurrence with a shared series id", func(t *testing.T) {
		repo := &stubBookingRepo{}
		svc := newService(repo)

		series, err := svc.CreateRecurringBooking(ctx, application.CreateRecurringBookingParams{
			Principal:  alice,
			ResourceID: "desk-1",
			Spec:       weekly(4, testfixtures.Range(9, 10)),
		})
		if err != nil {
			t.Fatalf("CreateRecurringBooking returned error: %v", err)
		}
		if len(series) != 4 {
			t.Fatalf("expected 4 occurrences, got %d", len(series))
		}
		for i, b := range series {
			if b.SeriesID != "b-1" {
				t.Fatalf("occurrence %d has series %q", i, b.SeriesID)
			}
			want := testfixtures.Range(9, 10).Shift(time.Duration(i) * 7 * 24 * time.Hour)
			if !b.Range.Equal(want) {
				t.Fatalf("occurrence %d = %v, want %v", i, b.Range, want)
			}
		}
		if len(repo.inserted) != 1 || len(repo.inserted[0]) != 4 {
			t.Fatalf("expected one batch of 4, got %+v", repo.inserted)
		}
	})

	t.Run("a clash in the third week rejects the whole series", func(t *testing.T) {
		week := 7 * 24 * time.Hour
		stored := testfixtures.NewBookingFixture(
			testfixtures.WithBookingID("blocker"),
			testfixtures.WithBookingRange(testfixtures.Range(9, 10).Shift(2*week)),
		).Booking()
		repo := &stubBookingRepo{existing: []booking.Booking{stored}}
		svc := newService(repo)

		series, err := svc.CreateRecurringBooking(ctx, application.CreateRecurringBookingParams{
			Principal:  alice,
			ResourceID: "desk-1",
			Spec:       weekly(4, testfixtures.Range(9, 10)),
		})
		if series != nil {
			t.Fatalf("expected no bookings, got %+v", series)
		}
		var conflict *booking.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("expected ConflictError, got %v", err)
		}
		if conflict.Occurrence != 2 || conflict.WithBookingID != "blocker" {
			t.Fatalf("unexpected conflict details: %+v", conflict)
		}
		if len(repo.inserted) != 0 {
			t.Fatalf("expected nothing inserted, got %+v", repo.inserted)
		}
	})

	t.Run("invalid pattern", func(t *testing.T) {
		repo := &stubBookingRepo{}
		svc := newService(repo)
		for _, count := range []int{0, recurrence.DefaultMaxOccurrences + 1} {
			_, err := svc.CreateRecurringBooking(ctx, application.CreateRecurringBookingParams{
				Principal:  alice,
				ResourceID: "desk-1",
				Spec:       weekly(count, testfixtures.Range(9, 10)),
			})
			if !errors.Is(err, application.ErrInvalidRecurrence) {
				t.Fatalf("count %d: expected ErrInvalidRecurrence, got %v", count, err)
			}
		}
		if repo.findCalls != 0 {
			t.Fatalf("expected no repository reads, got %d", repo.findCalls)
		}
	})

	t.Run("invalid first occurrence", func(t *testing.T) {
		svc := newService(&stubBookingRepo{})
		_, err := svc.CreateRecurringBooking(ctx, application.CreateRecurringBookingParams{
			Principal:  alice,
			ResourceID: "desk-1",
			Spec:       weekly(3, booking.TimeRange{Start: testfixtures.At(10, 0), End: testfixtures.At(9, 0)}),
		})
		if !errors.Is(err, application.ErrInvalidRange) {
			t.Fatalf("expected ErrInvalidRange, got %v", err)
		}
	})

	t.Run("occurrences longer than a week clash with each other", func(t *testing.T) {
		repo := &stubBookingRepo{}
		svc := newService(repo)
		first := booking.TimeRange{Start: testfixtures.At(9, 0), End: testfixtures.At(9, 0).Add(8 * 24 * time.Hour)}

		_, err := svc.CreateRecurringBooking(ctx, application.CreateRecurringBookingParams{
			Principal:  alice,
			ResourceID: "desk-1",
			Spec:       weekly(2, first),
		})
		var conflict *booking.ConflictError
		if !errors.As(err, &conflict) || conflict.Occurrence != 1 || conflict.WithBookingID != "" {
			t.Fatalf("expected sibling conflict on occurrence 1, got %v", err)
		}
		if len(repo.inserted) != 0 {
			t.Fatalf("expected nothing inserted")
		}
	})
}

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()
	owned := testfixtures.NewBookingFixture(testfixtures.WithBookingID("b-7"), testfixtures.WithBookingUser("alice")).Booking()

	t.Run("owner cancels", func(t *testing.T) {
		repo := &stubBookingRepo{getResult: owned}
		if err := newService(repo).CancelBooking(ctx, alice, "b-7"); err != nil {
			t.Fatalf("CancelBooking returned error: %v", err)
		}
		if len(repo.deleted) != 1 || repo.deleted[0] != "b-7" {
			t.Fatalf("expected b-7 deleted, got %v", repo.deleted)
		}
	})

	t.Run("other users are refused", func(t *testing.T) {
		repo := &stubBookingRepo{getResult: owned}
		err := newService(repo).CancelBooking(ctx, application.Principal{UserID: "bob"}, "b-7")
		if !errors.Is(err, application.ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
		if len(repo.deleted) != 0 {
			t.Fatalf("expected nothing deleted")
		}
	})

	t.Run("admins may cancel any booking", func(t *testing.T) {
		repo := &stubBookingRepo{getResult: owned}
		if err := newService(repo).CancelBooking(ctx, application.Principal{UserID: "root", IsAdmin: true}, "b-7"); err != nil {
			t.Fatalf("expected admin cancellation, got %v", err)
		}
	})

	t.Run("missing booking", func(t *testing.T) {
		repo := &stubBookingRepo{getErr: persistence.ErrNotFound}
		if err := newService(repo).CancelBooking(ctx, alice, "nope"); !errors.Is(err, application.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestListBookingsOrdersByStart(t *testing.T) {
	late := testfixtures.NewBookingFixture(testfixtures.WithBookingID("late"), testfixtures.WithBookingHours(14, 15)).Booking()
	early := testfixtures.NewBookingFixture(testfixtures.WithBookingID("early"), testfixtures.WithBookingHours(9, 10)).Booking()
	repo := &stubBookingRepo{existing: []booking.Booking{late, early}}

	got, err := newService(repo).ListBookings(context.Background(), "desk-1", testfixtures.Range(0, 23))
	if err != nil {
		t.Fatalf("ListBookings returned error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "early" || got[1].ID != "late" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

// Concurrent identical requests against real stores yield exactly one winner.
func TestConcurrentBookingsHaveOneWinner(t *testing.T) {
	stores := map[string]func(t *testing.T) application.BookingRepository{
		"memory": func(t *testing.T) application.BookingRepository {
			store := memory.Open()
			if err := testfixtures.Seed(context.Background(), store, testfixtures.NewResourceFixture(testfixtures.WithResourceID("desk-1"))); err != nil {
				t.Fatalf("seed failed: %v", err)
			}
			return bookingstore.New(store)
		},
		"sqlite": func(t *testing.T) application.BookingRepository {
			return testfixtures.NewSQLiteHarness(t, testfixtures.NewResourceFixture(testfixtures.WithResourceID("desk-1"))).Adapter
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			repo := open(t)
			svc := newService(repo)

			const writers = 8
			var (
				wg        sync.WaitGroup
				successes int
				conflicts int
				mu        sync.Mutex
			)
			start := make(chan struct{})
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-start
					_, err := svc.CreateBooking(context.Background(), application.CreateBookingParams{
						Principal:  alice,
						ResourceID: "desk-1",
						Range:      testfixtures.Range(10, 11),
					})
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						successes++
					case errors.Is(err, application.ErrConflict):
						conflicts++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
			close(start)
			wg.Wait()

			if successes != 1 || conflicts != writers-1 {
				t.Fatalf("expected 1 success and %d conflicts, got %d and %d", writers-1, successes, conflicts)
			}
			stored, err := repo.FindBookings(context.Background(), "desk-1", testfixtures.Range(0, 23))
			if err != nil || len(stored) != 1 {
				t.Fatalf("expected one stored booking, got %v, %v", stored, err)
			}
		})
	}
}
