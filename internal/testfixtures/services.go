package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/deskbook/internal/application"
	"github.com/example/deskbook/internal/recurrence"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// BookingServiceDeps captures dependencies for constructing a booking service.
type BookingServiceDeps struct {
	Bookings    application.BookingRepository
	Resources   application.ResourceCatalog
	Expander    application.RecurrenceExpander
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewBookingService builds a booking service using the supplied dependencies
// combined with the factory defaults. The default expander is a UTC engine
// with the standard occurrence cap.
func (f *ServiceFactory) NewBookingService(deps BookingServiceDeps) *application.BookingService {
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	expander := deps.Expander
	if expander == nil {
		expander = recurrence.NewEngine(time.UTC, recurrence.DefaultMaxOccurrences)
	}
	return application.NewBookingServiceWithLogger(
		deps.Bookings,
		deps.Resources,
		expander,
		idGen,
		now,
		deps.Logger,
	)
}

// AvailabilityServiceDeps captures dependencies for constructing an availability service.
type AvailabilityServiceDeps struct {
	Bookings  application.BookingFinder
	Resources application.ResourceCatalog
	Hours     application.WorkingHours
	Logger    *slog.Logger
}

// NewAvailabilityService builds an availability service. Zero working hours
// fall back to the defaults.
func (f *ServiceFactory) NewAvailabilityService(deps AvailabilityServiceDeps) *application.AvailabilityService {
	hours := deps.Hours
	if hours.End <= hours.Start {
		hours = application.DefaultWorkingHours()
	}
	return application.NewAvailabilityServiceWithLogger(deps.Bookings, deps.Resources, hours, deps.Logger)
}
