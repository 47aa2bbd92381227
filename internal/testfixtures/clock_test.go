package testfixtures

import (
	"context"
	"testing"
	"time"

	"github.com/example/deskbook/internal/application"
	"github.com/example/deskbook/internal/booking"
	"github.com/example/deskbook/internal/recurrence"
)

func TestClockStampsBookings(t *testing.T) {
	ctx := context.Background()
	principal := application.Principal{UserID: "user-1"}

	t.Run("frozen clock defaults to the reference time", func(t *testing.T) {
		clock := NewClock(time.Time{})
		if got := clock.Now(); !got.Equal(ReferenceTime()) {
			t.Fatalf("expected ReferenceTime, got %v", got)
		}
		if got := clock.Now(); !got.Equal(ReferenceTime()) {
			t.Fatalf("frozen clock moved to %v", got)
		}
	})

	t.Run("advance separates consecutive bookings", func(t *testing.T) {
		clock := NewClock(time.Time{})
		factory := NewServiceFactory(WithClock(clock))
		svc := factory.NewBookingService(BookingServiceDeps{Bookings: &capturingBookingRepo{}})

		first, err := svc.CreateBooking(ctx, application.CreateBookingParams{Principal: principal, ResourceID: "desk-1", Range: Range(9, 10)})
		if err != nil {
			t.Fatalf("CreateBooking returned error: %v", err)
		}
		clock.Advance(time.Hour)
		second, err := svc.CreateBooking(ctx, application.CreateBookingParams{Principal: principal, ResourceID: "desk-1", Range: Range(10, 11)})
		if err != nil {
			t.Fatalf("CreateBooking returned error: %v", err)
		}

		if got := second.CreatedAt.Sub(first.CreatedAt); got != time.Hour {
			t.Fatalf("expected bookings an hour apart, got %v", got)
		}
	})

	t.Run("a series is stamped from a single reading", func(t *testing.T) {
		clock := NewTickingClock(time.Time{}, time.Second)
		factory := NewServiceFactory(WithClock(clock))
		repo := &capturingBookingRepo{}
		svc := factory.NewBookingService(BookingServiceDeps{Bookings: repo})

		series, err := svc.CreateRecurringBooking(ctx, application.CreateRecurringBookingParams{
			Principal:  principal,
			ResourceID: "desk-1",
			Spec: recurrence.Spec{
				Pattern: recurrence.Weekly{OccurrenceCount: 3},
				First:   booking.TimeRange{Start: At(9, 0), End: At(10, 0)},
			},
		})
		if err != nil {
			t.Fatalf("CreateRecurringBooking returned error: %v", err)
		}
		for i, b := range series {
			if !b.CreatedAt.Equal(ReferenceTime()) {
				t.Fatalf("occurrence %d stamped %v, expected %v", i, b.CreatedAt, ReferenceTime())
			}
		}
		if got := clock.Peek(); !got.Equal(ReferenceTime().Add(time.Second)) {
			t.Fatalf("expected exactly one clock reading, clock now at %v", got)
		}
	})
}

func TestClockNowFuncNil(t *testing.T) {
	var clock *Clock
	before := time.Now()
	if got := clock.NowFunc()(); got.Before(before) {
		t.Fatalf("nil clock should fall back to wall time, got %v", got)
	}
}
