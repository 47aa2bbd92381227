package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/deskbook/internal/application"
	"github.com/example/deskbook/internal/booking"
	"github.com/example/deskbook/internal/calendar"
)

type bookingLister interface {
	ListBookings(ctx context.Context, resourceID string, window booking.TimeRange) ([]booking.Booking, error)
}

type CalendarHandler struct {
	service   bookingLister
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

func NewCalendarHandler(service bookingLister, now func() time.Time, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &CalendarHandler{service: service, now: now, responder: newResponder(base), logger: base}
}

// Export handles GET /resources/:id/calendar.ics.
func (h *CalendarHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()
	resourceID := c.Param("id")
	logger := handlerLogger(ctx, h.logger, "CalendarHandler", "Export", "resource_id", resourceID)

	window, err := windowFromQuery(c)
	if err != nil {
		h.responder.writeError(c, http.StatusBadRequest, err)
		return
	}

	bookings, err := h.service.ListBookings(ctx, resourceID, window)
	if err != nil {
		logger.WarnContext(ctx, "calendar export failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	var buf bytes.Buffer
	if err := calendar.Write(&buf, resourceID, bookings, h.now()); err != nil {
		logger.ErrorContext(ctx, "failed to render calendar", "error", err)
		h.responder.writeError(c, http.StatusInternalServerError, nil)
		return
	}

	logger.DebugContext(ctx, "calendar exported", "events", len(bookings))
	c.Data(http.StatusOK, calendar.ContentType, buf.Bytes())
}
