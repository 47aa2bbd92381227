package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/deskbook/internal/booking"
)

// AvailabilityService answers read-only availability queries for a resource.
type AvailabilityService struct {
	bookings  BookingFinder
	resources ResourceCatalog
	hours     WorkingHours
	logger    *slog.Logger
}

// NewAvailabilityService constructs an AvailabilityService using the default working hours.
func NewAvailabilityService(bookings BookingFinder, resources ResourceCatalog) *AvailabilityService {
	return NewAvailabilityServiceWithLogger(bookings, resources, DefaultWorkingHours(), nil)
}

// NewAvailabilityServiceWithLogger constructs an AvailabilityService with explicit
// working hours and logger.
func NewAvailabilityServiceWithLogger(bookings BookingFinder, resources ResourceCatalog, hours WorkingHours, logger *slog.Logger) *AvailabilityService {
	if hours.Location == nil {
		hours.Location = time.UTC
	}
	if hours.End <= hours.Start {
		defaults := DefaultWorkingHours()
		hours.Start, hours.End = defaults.Start, defaults.End
	}
	return &AvailabilityService{
		bookings:  bookings,
		resources: resources,
		hours:     hours,
		logger:    defaultLogger(logger),
	}
}

// WorkingHours returns the display window configuration.
func (s *AvailabilityService) WorkingHours() WorkingHours {
	return s.hours
}

// GetAvailability partitions window into available and booked slots.
func (s *AvailabilityService) GetAvailability(ctx context.Context, resourceID string, window booking.TimeRange) (slots []booking.Slot, err error) {
	logger := serviceLogger(ctx, s.logger, "AvailabilityService", "GetAvailability", "resource_id", resourceID)
	defer func() {
		if err != nil {
			logger.Warn("availability lookup failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.Debug("availability computed", "slots", len(slots))
	}()

	if strings.TrimSpace(resourceID) == "" {
		vErr := &ValidationError{}
		vErr.add("resource_id", "resource id is required")
		return nil, vErr
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if s.resources != nil {
		exists, err := s.resources.ResourceExists(ctx, resourceID)
		if err != nil {
			return nil, fmt.Errorf("check resource %s: %w", resourceID, err)
		}
		if !exists {
			return nil, fmt.Errorf("resource %s: %w", resourceID, ErrNotFound)
		}
	}

	bookings, err := s.bookings.FindBookings(ctx, resourceID, window)
	if err != nil {
		return nil, mapBookingRepoError(err)
	}
	return booking.ComputeSlots(window, bookings), nil
}

// GetDayAvailability returns availability across the working hours of the
// calendar day containing date, in the configured location.
func (s *AvailabilityService) GetDayAvailability(ctx context.Context, resourceID string, date time.Time) ([]booking.Slot, error) {
	return s.GetAvailability(ctx, resourceID, s.hours.Window(date))
}
