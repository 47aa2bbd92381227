package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/example/deskbook/internal/application"
	"github.com/example/deskbook/internal/booking"
)

type availabilityService interface {
	GetAvailability(ctx context.Context, resourceID string, window booking.TimeRange) ([]booking.Slot, error)
	GetDayAvailability(ctx context.Context, resourceID string, date time.Time) ([]booking.Slot, error)
}

type AvailabilityHandler struct {
	service   availabilityService
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

// NewAvailabilityHandler builds a handler. ?date= values are read in location.
func NewAvailabilityHandler(service availabilityService, location *time.Location, logger *slog.Logger) *AvailabilityHandler {
	base := defaultLogger(logger)
	if location == nil {
		location = time.UTC
	}
	return &AvailabilityHandler{service: service, location: location, responder: newResponder(base), logger: base}
}

// Get handles GET /resources/:id/availability.
func (h *AvailabilityHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	resourceID := c.Param("id")
	logger := handlerLogger(ctx, h.logger, "AvailabilityHandler", "Get", "resource_id", resourceID)

	var (
		slots []booking.Slot
		err   error
	)
	if date := c.Query("date"); date != "" {
		day, perr := time.ParseInLocation(time.DateOnly, date, h.location)
		if perr != nil {
			h.responder.writeError(c, http.StatusBadRequest, errInvalidDate)
			return
		}
		slots, err = h.service.GetDayAvailability(ctx, resourceID, day)
	} else {
		window, werr := windowFromQuery(c)
		if werr != nil {
			h.responder.writeError(c, http.StatusBadRequest, werr)
			return
		}
		slots, err = h.service.GetAvailability(ctx, resourceID, window)
	}
	if err != nil {
		logger.WarnContext(ctx, "availability lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(c, err)
		return
	}

	resp := availabilityResponse{ResourceID: resourceID, Slots: make([]slotDTO, 0, len(slots))}
	for _, slot := range slots {
		resp.Slots = append(resp.Slots, slotDTO{
			Start:     slot.Range.Start,
			End:       slot.Range.End,
			Status:    string(slot.Status),
			BookingID: slot.BookingID,
		})
	}
	h.responder.writeJSON(c, http.StatusOK, resp)
}

// windowFromQuery reads the RFC 3339 ?start= and ?end= parameters.
func windowFromQuery(c *gin.Context) (booking.TimeRange, error) {
	startValue, endValue := c.Query("start"), c.Query("end")
	if startValue == "" || endValue == "" {
		return booking.TimeRange{}, errMissingWindow
	}
	start, err := time.Parse(time.RFC3339, startValue)
	if err != nil {
		return booking.TimeRange{}, errInvalidTimestamp
	}
	end, err := time.Parse(time.RFC3339, endValue)
	if err != nil {
		return booking.TimeRange{}, errInvalidTimestamp
	}
	return booking.TimeRange{Start: start, End: end}, nil
}

type slotDTO struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Status    string    `json:"status"`
	BookingID string    `json:"booking_id,omitempty"`
}

type availabilityResponse struct {
	ResourceID string    `json:"resource_id"`
	Slots      []slotDTO `json:"slots"`
}
