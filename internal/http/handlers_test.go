package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/deskbook/internal/application"
	"github.com/example/deskbook/internal/booking"
	"github.com/example/deskbook/internal/recurrence"
)

var testSecret = []byte("test-secret")

func init() {
	gin.SetMode(gin.TestMode)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var monday = time.Date(2024, time.March, 4, 0, 0, 0, 0, time.UTC)

func hour(h int) time.Time { return monday.Add(time.Duration(h) * time.Hour) }

type stubBookingService struct {
	single    application.CreateBookingParams
	recurring application.CreateRecurringBookingParams
	cancelled string
	listed    booking.TimeRange
	bookings  []booking.Booking
	err       error
}

func (s *stubBookingService) CreateBooking(ctx context.Context, params application.CreateBookingParams) (booking.Booking, error) {
	s.single = params
	if s.err != nil {
		return booking.Booking{}, s.err
	}
	userID := params.UserID
	if userID == "" {
		userID = params.Principal.UserID
	}
	return booking.Booking{ID: "b-1", ResourceID: params.ResourceID, UserID: userID, Range: params.Range}, nil
}

func (s *stubBookingService) CreateRecurringBooking(ctx context.Context, params application.CreateRecurringBookingParams) ([]booking.Booking, error) {
	s.recurring = params
	if s.err != nil {
		return nil, s.err
	}
	return []booking.Booking{
		{ID: "b-1", SeriesID: "s-1", Range: params.Spec.First},
		{ID: "b-2", SeriesID: "s-1", Range: params.Spec.First.Shift(7 * 24 * time.Hour)},
	}, nil
}

func (s *stubBookingService) CancelBooking(ctx context.Context, principal application.Principal, bookingID string) error {
	s.cancelled = bookingID
	return s.err
}

func (s *stubBookingService) ListBookings(ctx context.Context, resourceID string, window booking.TimeRange) ([]booking.Booking, error) {
	s.listed = window
	return s.bookings, s.err
}

type stubAvailabilityService struct {
	window booking.TimeRange
	date   time.Time
	err    error
}

func (s *stubAvailabilityService) GetAvailability(ctx context.Context, resourceID string, window booking.TimeRange) ([]booking.Slot, error) {
	s.window = window
	if s.err != nil {
		return nil, s.err
	}
	return booking.ComputeSlots(window, []booking.Booking{{ID: "b-1", Range: booking.TimeRange{Start: hour(10), End: hour(11)}}}), nil
}

func (s *stubAvailabilityService) GetDayAvailability(ctx context.Context, resourceID string, date time.Time) ([]booking.Slot, error) {
	s.date = date
	return s.GetAvailability(ctx, resourceID, booking.TimeRange{Start: date.Add(9 * time.Hour), End: date.Add(17 * time.Hour)})
}

func newTestRouter(bookings *stubBookingService, availability *stubAvailabilityService) *gin.Engine {
	logger := discardLogger()
	return NewRouter(RouterConfig{
		Bookings:     NewBookingHandler(bookings, logger),
		Availability: NewAvailabilityHandler(availability, time.UTC, logger),
		Calendar:     NewCalendarHandler(bookings, func() time.Time { return monday }, logger),
		Auth:         RequireBearer(testSecret, logger),
		Logger:       logger,
	})
}

func token(t *testing.T, principal application.Principal) string {
	t.Helper()
	signed, err := IssueToken(testSecret, principal, time.Hour, time.Now())
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	return signed
}

func do(t *testing.T, router http.Handler, method, target, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, target, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestHealthzIsPublic(t *testing.T) {
	rec := do(t, newTestRouter(&stubBookingService{}, &stubAvailabilityService{}), http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestBookingHandlers(t *testing.T) {
	alice := application.Principal{UserID: "alice"}

	t.Run("create passes the principal and range to the service", func(t *testing.T) {
		svc := &stubBookingService{}
		rec := do(t, newTestRouter(svc, &stubAvailabilityService{}), http.MethodPost, "/resources/desk-1/bookings", token(t, alice),
			map[string]any{"start": hour(10), "end": hour(11)})

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		if svc.single.Principal != alice || svc.single.ResourceID != "desk-1" || !svc.single.Range.Start.Equal(hour(10)) {
			t.Fatalf("unexpected params: %+v", svc.single)
		}
		resp := decode[bookingResponse](t, rec)
		if resp.Booking.ID != "b-1" || resp.Booking.UserID != "alice" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/resources/desk-1/bookings", strings.NewReader("{"))
		req.Header.Set("Authorization", "Bearer "+token(t, alice))
		rec := httptest.NewRecorder()
		newTestRouter(&stubBookingService{}, &stubAvailabilityService{}).ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("recurring request builds a weekly spec", func(t *testing.T) {
		svc := &stubBookingService{}
		rec := do(t, newTestRouter(svc, &stubAvailabilityService{}), http.MethodPost, "/resources/desk-1/recurring-bookings", token(t, alice),
			map[string]any{"cadence": "WEEKLY", "occurrence_count": 2, "start": hour(10), "end": hour(11)})

		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
		}
		weekly, ok := svc.recurring.Spec.Pattern.(recurrence.Weekly)
		if !ok || weekly.OccurrenceCount != 2 {
			t.Fatalf("unexpected pattern: %#v", svc.recurring.Spec.Pattern)
		}
		resp := decode[seriesResponse](t, rec)
		if resp.SeriesID != "s-1" || len(resp.Bookings) != 2 {
			t.Fatalf("unexpected response: %+v", resp)
		}
	})

	t.Run("unknown cadence fails before the service", func(t *testing.T) {
		svc := &stubBookingService{}
		rec := do(t, newTestRouter(svc, &stubAvailabilityService{}), http.MethodPost, "/resources/desk-1/recurring-bookings", token(t, alice),
			map[string]any{"cadence": "daily", "occurrence_count": 2, "start": hour(10), "end": hour(11)})

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		if resp := decode[errorResponse](t, rec); resp.ErrorCode != "INVALID_RECURRENCE" {
			t.Fatalf("unexpected error code %q", resp.ErrorCode)
		}
		if svc.recurring.ResourceID != "" {
			t.Fatalf("service must not be called")
		}
	})

	t.Run("series conflict is a distinguishable 409", func(t *testing.T) {
		svc := &stubBookingService{err: &booking.ConflictError{
			Occurrence:    1,
			Candidate:     booking.TimeRange{Start: hour(10 + 7*24), End: hour(11 + 7*24)},
			WithBookingID: "other",
			With:          booking.TimeRange{Start: hour(10 + 7*24), End: hour(11 + 7*24)},
		}}
		rec := do(t, newTestRouter(svc, &stubAvailabilityService{}), http.MethodPost, "/resources/desk-1/recurring-bookings", token(t, alice),
			map[string]any{"cadence": "weekly", "occurrence_count": 3, "start": hour(10), "end": hour(11)})

		if rec.Code != http.StatusConflict {
			t.Fatalf("expected 409, got %d", rec.Code)
		}
		resp := decode[errorResponse](t, rec)
		if resp.ErrorCode != "BOOKING_CONFLICT" || resp.Conflict == nil || resp.Conflict.Occurrence == nil || *resp.Conflict.Occurrence != 1 {
			t.Fatalf("unexpected conflict payload: %+v", resp)
		}
		if resp.Conflict.WithBookingID != "other" {
			t.Fatalf("expected conflicting booking id, got %q", resp.Conflict.WithBookingID)
		}
	})

	t.Run("cancel returns no content", func(t *testing.T) {
		svc := &stubBookingService{}
		rec := do(t, newTestRouter(svc, &stubAvailabilityService{}), http.MethodDelete, "/bookings/b-9", token(t, alice), nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204, got %d", rec.Code)
		}
		if svc.cancelled != "b-9" {
			t.Fatalf("expected b-9 cancelled, got %q", svc.cancelled)
		}
	})
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{application.ErrInvalidRange, http.StatusUnprocessableEntity, "INVALID_RANGE"},
		{fmt.Errorf("%w: commit", application.ErrConflict), http.StatusConflict, "BOOKING_CONFLICT"},
		{application.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{fmt.Errorf("%w: b-1", application.ErrAlreadyExists), http.StatusConflict, "ALREADY_EXISTS"},
		{application.ErrUnauthorized, http.StatusForbidden, "AUTH_FORBIDDEN"},
		{&application.ValidationError{FieldErrors: map[string]string{"resource_id": "resource id is required"}}, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.err), func(t *testing.T) {
			svc := &stubBookingService{err: tc.err}
			rec := do(t, newTestRouter(svc, &stubAvailabilityService{}), http.MethodPost, "/resources/desk-1/bookings",
				token(t, application.Principal{UserID: "alice"}), map[string]any{"start": hour(10), "end": hour(11)})
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if resp := decode[errorResponse](t, rec); resp.ErrorCode != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, resp.ErrorCode)
			}
		})
	}
}

func TestAvailabilityHandler(t *testing.T) {
	bearer := token(t, application.Principal{UserID: "alice"})

	t.Run("explicit window", func(t *testing.T) {
		svc := &stubAvailabilityService{}
		target := "/resources/desk-1/availability?start=" + hour(9).Format(time.RFC3339) + "&end=" + hour(17).Format(time.RFC3339)
		rec := do(t, newTestRouter(&stubBookingService{}, svc), http.MethodGet, target, bearer, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		resp := decode[availabilityResponse](t, rec)
		if len(resp.Slots) != 3 || resp.Slots[1].Status != "booked" || resp.Slots[1].BookingID != "b-1" {
			t.Fatalf("unexpected slots: %+v", resp.Slots)
		}
	})

	t.Run("date uses the day view", func(t *testing.T) {
		svc := &stubAvailabilityService{}
		rec := do(t, newTestRouter(&stubBookingService{}, svc), http.MethodGet, "/resources/desk-1/availability?date=2024-03-04", bearer, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !svc.date.Equal(monday) {
			t.Fatalf("expected date %v, got %v", monday, svc.date)
		}
	})

	t.Run("missing window", func(t *testing.T) {
		rec := do(t, newTestRouter(&stubBookingService{}, &stubAvailabilityService{}), http.MethodGet, "/resources/desk-1/availability", bearer, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("unknown resource", func(t *testing.T) {
		svc := &stubAvailabilityService{err: application.ErrNotFound}
		rec := do(t, newTestRouter(&stubBookingService{}, svc), http.MethodGet, "/resources/desk-9/availability?date=2024-03-04", bearer, nil)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestCalendarExport(t *testing.T) {
	svc := &stubBookingService{bookings: []booking.Booking{
		{ID: "b-1", ResourceID: "desk-1", UserID: "alice", Range: booking.TimeRange{Start: hour(10), End: hour(11)}},
	}}
	target := "/resources/desk-1/calendar.ics?start=" + hour(0).Format(time.RFC3339) + "&end=" + hour(24).Format(time.RFC3339)
	rec := do(t, newTestRouter(svc, &stubAvailabilityService{}), http.MethodGet, target, token(t, application.Principal{UserID: "alice"}), nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "UID:b-1@deskbook") {
		t.Fatalf("expected event uid in body:\n%s", rec.Body.String())
	}
	if !svc.listed.Start.Equal(hour(0)) || !svc.listed.End.Equal(hour(24)) {
		t.Fatalf("unexpected window %v", svc.listed)
	}
}
