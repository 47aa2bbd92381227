package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/deskbook/internal/application"
	"github.com/example/deskbook/internal/booking"
	"github.com/example/deskbook/internal/recurrence"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (booking.Booking, error)
	CreateRecurringBooking(ctx context.Context, params application.CreateRecurringBookingParams) ([]booking.Booking, error)
	CancelBooking(ctx context.Context, principal application.Principal, bookingID string) error
}

type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

// Create handles POST /resources/:id/bookings.
func (h *BookingHandler) Create(c *gin.Context) {
	ctx := c.Request.Context()
	principal, _ := PrincipalFromContext(ctx)
	resourceID := c.Param("id")

	var req bookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "Create", "resource_id", resourceID, "error_kind", "bad_request").WarnContext(ctx, "failed to decode booking request", "error", err)
		h.responder.writeError(c, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(ctx, "Create", "resource_id", resourceID)

	created, err := h.service.CreateBooking(ctx, application.CreateBookingParams{
		Principal:  principal,
		ResourceID: resourceID,
		UserID:     strings.TrimSpace(req.UserID),
		Range:      booking.TimeRange{Start: req.Start, End: req.End},
	})
	if err != nil {
		logger.WarnContext(ctx, "booking creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.With("booking_id", created.ID).InfoContext(ctx, "booking created")
	h.responder.writeJSON(c, http.StatusCreated, bookingResponse{Booking: toBookingDTO(created)})
}

// CreateRecurring handles POST /resources/:id/recurring-bookings.
func (h *BookingHandler) CreateRecurring(c *gin.Context) {
	ctx := c.Request.Context()
	principal, _ := PrincipalFromContext(ctx)
	resourceID := c.Param("id")

	var req recurringBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log(ctx, "CreateRecurring", "resource_id", resourceID, "error_kind", "bad_request").WarnContext(ctx, "failed to decode recurring booking request", "error", err)
		h.responder.writeError(c, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(ctx, "CreateRecurring", "resource_id", resourceID, "cadence", req.Cadence, "occurrence_count", req.OccurrenceCount)

	pattern, err := recurrence.ParsePattern(req.Cadence, req.OccurrenceCount)
	if err != nil {
		logger.WarnContext(ctx, "invalid recurrence", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	series, err := h.service.CreateRecurringBooking(ctx, application.CreateRecurringBookingParams{
		Principal:  principal,
		ResourceID: resourceID,
		UserID:     strings.TrimSpace(req.UserID),
		Spec: recurrence.Spec{
			Pattern: pattern,
			First:   booking.TimeRange{Start: req.Start, End: req.End},
		},
	})
	if err != nil {
		logger.WarnContext(ctx, "recurring booking failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	resp := seriesResponse{Bookings: make([]bookingDTO, 0, len(series))}
	for _, b := range series {
		resp.Bookings = append(resp.Bookings, toBookingDTO(b))
	}
	if len(series) > 0 {
		resp.SeriesID = series[0].SeriesID
	}

	logger.With("series_id", resp.SeriesID, "occurrences", len(series)).InfoContext(ctx, "recurring booking created")
	h.responder.writeJSON(c, http.StatusCreated, resp)
}

// Cancel handles DELETE /bookings/:id.
func (h *BookingHandler) Cancel(c *gin.Context) {
	ctx := c.Request.Context()
	principal, _ := PrincipalFromContext(ctx)
	bookingID := c.Param("id")

	logger := h.log(ctx, "Cancel", "booking_id", bookingID)

	if err := h.service.CancelBooking(ctx, principal, bookingID); err != nil {
		logger.WarnContext(ctx, "booking cancellation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	logger.InfoContext(ctx, "booking cancelled")
	h.responder.writeJSON(c, http.StatusNoContent, nil)
}

type bookingRequest struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	UserID string    `json:"user_id"`
}

type recurringBookingRequest struct {
	Cadence         string    `json:"cadence"`
	OccurrenceCount int       `json:"occurrence_count"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	UserID          string    `json:"user_id"`
}

type bookingDTO struct {
	ID         string    `json:"id"`
	ResourceID string    `json:"resource_id"`
	UserID     string    `json:"user_id"`
	SeriesID   string    `json:"series_id,omitempty"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	CreatedAt  time.Time `json:"created_at"`
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type seriesResponse struct {
	SeriesID string       `json:"series_id"`
	Bookings []bookingDTO `json:"bookings"`
}

func toBookingDTO(b booking.Booking) bookingDTO {
	return bookingDTO{
		ID:         b.ID,
		ResourceID: b.ResourceID,
		UserID:     b.UserID,
		SeriesID:   b.SeriesID,
		Start:      b.Range.Start,
		End:        b.Range.End,
		CreatedAt:  b.CreatedAt,
	}
}
