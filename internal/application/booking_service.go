package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/deskbook/internal/booking"
	"github.com/example/deskbook/internal/recurrence"
)

// BookingFinder reads the bookings of a resource intersecting a window.
type BookingFinder interface {
	FindBookings(ctx context.Context, resourceID string, window booking.TimeRange) ([]booking.Booking, error)
}

// BookingRepository abstracts persistence operations for bookings.
//
// InsertBookings must store the whole batch or nothing, and must reject a batch
// that overlaps a stored booking of the resource at commit time.
type BookingRepository interface {
	BookingFinder
	InsertBookings(ctx context.Context, resourceID string, bookings []booking.Booking) error
	GetBooking(ctx context.Context, id string) (booking.Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// ResourceCatalog reports whether a bookable resource exists.
type ResourceCatalog interface {
	ResourceExists(ctx context.Context, id string) (bool, error)
}

// RecurrenceExpander turns a recurrence request into concrete occurrences.
type RecurrenceExpander interface {
	Expand(spec recurrence.Spec) ([]booking.TimeRange, error)
}

// BookingService coordinates single and recurring reservations.
type BookingService struct {
	bookings    BookingRepository
	resources   ResourceCatalog
	expander    RecurrenceExpander
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a BookingService.
func NewBookingService(bookings BookingRepository, resources ResourceCatalog, expander RecurrenceExpander, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, resources, expander, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a BookingService with a custom logger.
func NewBookingServiceWithLogger(bookings BookingRepository, resources ResourceCatalog, expander RecurrenceExpander, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if expander == nil {
		expander = recurrence.NewEngine(time.UTC, recurrence.DefaultMaxOccurrences)
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings:    bookings,
		resources:   resources,
		expander:    expander,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// CreateBooking validates and stores a single reservation.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (result booking.Booking, err error) {
	logger := serviceLogger(ctx, s.logger, "BookingService", "CreateBooking",
		"principal_id", params.Principal.UserID,
		"resource_id", params.ResourceID,
	)
	defer func() {
		if err != nil {
			logger.Warn("booking creation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.Info("booking created", "booking_id", result.ID, "user_id", result.UserID)
	}()

	userID, err := s.prepare(params.Principal, params.ResourceID, params.UserID)
	if err != nil {
		return booking.Booking{}, err
	}
	params.Range = params.Range.Truncate()
	if err := params.Range.Validate(); err != nil {
		return booking.Booking{}, err
	}
	if err := s.ensureResource(ctx, params.ResourceID); err != nil {
		return booking.Booking{}, err
	}

	existing, err := s.bookings.FindBookings(ctx, params.ResourceID, params.Range)
	if err != nil {
		return booking.Booking{}, mapBookingRepoError(err)
	}
	if err := booking.Validate(params.Range, existing); err != nil {
		return booking.Booking{}, err
	}

	candidate := booking.Booking{
		ID:         s.idGenerator(),
		ResourceID: params.ResourceID,
		UserID:     userID,
		Range:      params.Range,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.bookings.InsertBookings(ctx, params.ResourceID, []booking.Booking{candidate}); err != nil {
		return booking.Booking{}, mapBookingRepoError(err)
	}
	return candidate, nil
}

// CreateRecurringBooking expands a weekly series and stores every occurrence or none.
// The first occurrence that clashes with a stored booking or an earlier sibling
// is reported as a *booking.ConflictError carrying its index.
func (s *BookingService) CreateRecurringBooking(ctx context.Context, params CreateRecurringBookingParams) (result []booking.Booking, err error) {
	logger := serviceLogger(ctx, s.logger, "BookingService", "CreateRecurringBooking",
		"principal_id", params.Principal.UserID,
		"resource_id", params.ResourceID,
	)
	defer func() {
		if err != nil {
			logger.Warn("recurring booking failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.Info("recurring booking created", "series_id", result[0].SeriesID, "occurrences", len(result))
	}()

	userID, err := s.prepare(params.Principal, params.ResourceID, params.UserID)
	if err != nil {
		return nil, err
	}
	params.Spec.First = params.Spec.First.Truncate()
	occurrences, err := s.expander.Expand(params.Spec)
	if err != nil {
		return nil, err
	}
	if len(occurrences) == 0 {
		return nil, ErrInvalidRecurrence
	}
	if err := s.ensureResource(ctx, params.ResourceID); err != nil {
		return nil, err
	}

	span := booking.TimeRange{Start: occurrences[0].Start, End: occurrences[len(occurrences)-1].End}
	existing, err := s.bookings.FindBookings(ctx, params.ResourceID, span)
	if err != nil {
		return nil, mapBookingRepoError(err)
	}

	for i, occurrence := range occurrences {
		if clash, ok := booking.FindConflict(occurrence, existing); ok {
			return nil, &booking.ConflictError{
				Occurrence:    i,
				Candidate:     occurrence,
				WithBookingID: clash.ID,
				With:          clash.Range,
			}
		}
		for _, sibling := range occurrences[:i] {
			if sibling.Overlaps(occurrence) {
				return nil, &booking.ConflictError{Occurrence: i, Candidate: occurrence, With: sibling}
			}
		}
	}

	seriesID := s.idGenerator()
	createdAt := s.now().UTC()
	series := make([]booking.Booking, 0, len(occurrences))
	for _, occurrence := range occurrences {
		series = append(series, booking.Booking{
			ID:         s.idGenerator(),
			ResourceID: params.ResourceID,
			UserID:     userID,
			SeriesID:   seriesID,
			Range:      occurrence,
			CreatedAt:  createdAt,
		})
	}
	if err := s.bookings.InsertBookings(ctx, params.ResourceID, series); err != nil {
		return nil, mapBookingRepoError(err)
	}
	return series, nil
}

// CancelBooking deletes a booking. Only its owner or an administrator may cancel it.
func (s *BookingService) CancelBooking(ctx context.Context, principal Principal, bookingID string) (err error) {
	logger := serviceLogger(ctx, s.logger, "BookingService", "CancelBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)
	defer func() {
		if err != nil {
			logger.Warn("booking cancellation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.Info("booking cancelled")
	}()

	if strings.TrimSpace(principal.UserID) == "" {
		return ErrUnauthenticated
	}
	vErr := &ValidationError{}
	if strings.TrimSpace(bookingID) == "" {
		vErr.add("booking_id", "booking id is required")
	}
	if vErr.HasErrors() {
		return vErr
	}

	stored, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return mapBookingRepoError(err)
	}
	if stored.UserID != principal.UserID && !principal.IsAdmin {
		return ErrUnauthorized
	}
	return mapBookingRepoError(s.bookings.DeleteBooking(ctx, bookingID))
}

// ListBookings returns the bookings of a resource intersecting window, ordered by start.
func (s *BookingService) ListBookings(ctx context.Context, resourceID string, window booking.TimeRange) ([]booking.Booking, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureResource(ctx, resourceID); err != nil {
		return nil, err
	}
	bookings, err := s.bookings.FindBookings(ctx, resourceID, window)
	if err != nil {
		return nil, mapBookingRepoError(err)
	}
	booking.SortBookings(bookings)
	return bookings, nil
}

// prepare authenticates the principal, checks the resource id and resolves the
// user the reservation is made for.
func (s *BookingService) prepare(principal Principal, resourceID, userID string) (string, error) {
	if strings.TrimSpace(principal.UserID) == "" {
		return "", ErrUnauthenticated
	}
	vErr := &ValidationError{}
	if strings.TrimSpace(resourceID) == "" {
		vErr.add("resource_id", "resource id is required")
	}
	if vErr.HasErrors() {
		return "", vErr
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		userID = principal.UserID
	}
	if userID != principal.UserID && !principal.IsAdmin {
		return "", ErrUnauthorized
	}
	return userID, nil
}

func (s *BookingService) ensureResource(ctx context.Context, resourceID string) error {
	if s.resources == nil {
		return nil
	}
	exists, err := s.resources.ResourceExists(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("check resource %s: %w", resourceID, err)
	}
	if !exists {
		return fmt.Errorf("resource %s: %w", resourceID, ErrNotFound)
	}
	return nil
}
