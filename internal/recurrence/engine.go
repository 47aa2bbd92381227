package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/example/deskbook/internal/booking"
)

// DefaultMaxOccurrences bounds a series when the engine is built without an explicit cap.
const DefaultMaxOccurrences = 52

// ErrInvalidRecurrence indicates an unsupported cadence or an out-of-range occurrence count.
var ErrInvalidRecurrence = errors.New("recurrence: invalid recurrence")

// Cadence names a recurrence pattern.
type Cadence string

const (
	// CadenceWeekly repeats the first occurrence every seven days.
	CadenceWeekly Cadence = "weekly"
)

// Pattern is a recurrence cadence together with its parameters.
type Pattern interface {
	Cadence() Cadence
}

// Weekly repeats the first occurrence OccurrenceCount times, seven days apart.
type Weekly struct {
	OccurrenceCount int
}

// Cadence implements Pattern.
func (Weekly) Cadence() Cadence { return CadenceWeekly }

// Spec describes a recurring series by its pattern and first occurrence.
type Spec struct {
	Pattern Pattern
	First   booking.TimeRange
}

// ParsePattern builds the pattern named by cadence. Unknown cadences fail immediately.
func ParsePattern(cadence string, occurrenceCount int) (Pattern, error) {
	switch Cadence(strings.ToLower(strings.TrimSpace(cadence))) {
	case CadenceWeekly:
		if occurrenceCount < 1 {
			return nil, fmt.Errorf("%w: occurrence count must be at least 1", ErrInvalidRecurrence)
		}
		return Weekly{OccurrenceCount: occurrenceCount}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported cadence %q", ErrInvalidRecurrence, cadence)
	}
}

// Engine expands recurrence specs into concrete ranges.
type Engine struct {
	location       *time.Location
	maxOccurrences int
}

// NewEngine constructs an Engine that expands in loc and caps series at maxOccurrences.
// A nil loc means UTC and a non-positive cap means DefaultMaxOccurrences.
func NewEngine(loc *time.Location, maxOccurrences int) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}
	return &Engine{location: loc, maxOccurrences: maxOccurrences}
}

// Location returns the display location used for expansion.
func (e *Engine) Location() *time.Location {
	if e == nil || e.location == nil {
		return time.UTC
	}
	return e.location
}

// MaxOccurrences returns the configured series cap.
func (e *Engine) MaxOccurrences() int {
	if e == nil || e.maxOccurrences <= 0 {
		return DefaultMaxOccurrences
	}
	return e.maxOccurrences
}

// Expand returns the ordered occurrences described by spec.
//
// Occurrence i is First shifted by 7*i days; time of day and duration are kept.
// The pattern is checked before the first range so an unknown cadence is always
// reported as ErrInvalidRecurrence.
func (e *Engine) Expand(spec Spec) ([]booking.TimeRange, error) {
	weekly, err := e.weekly(spec.Pattern)
	if err != nil {
		return nil, err
	}
	if err := spec.First.Validate(); err != nil {
		return nil, err
	}

	loc := e.Location()
	first := spec.First.In(loc)
	duration := first.Duration()

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:    rrule.WEEKLY,
		Count:   weekly.OccurrenceCount,
		Dtstart: first.Start,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}

	// rrule works at second precision.
	remainder := first.Start.Sub(first.Start.Truncate(time.Second))

	starts := rule.All()
	ranges := make([]booking.TimeRange, 0, len(starts))
	for _, start := range starts {
		start = start.In(loc).Add(remainder)
		ranges = append(ranges, booking.TimeRange{Start: start, End: start.Add(duration)})
	}
	if len(ranges) != weekly.OccurrenceCount {
		return nil, fmt.Errorf("%w: expanded %d of %d occurrences", ErrInvalidRecurrence, len(ranges), weekly.OccurrenceCount)
	}
	return ranges, nil
}

func (e *Engine) weekly(pattern Pattern) (Weekly, error) {
	var w Weekly
	switch p := pattern.(type) {
	case Weekly:
		w = p
	case *Weekly:
		if p == nil {
			return Weekly{}, fmt.Errorf("%w: pattern is required", ErrInvalidRecurrence)
		}
		w = *p
	case nil:
		return Weekly{}, fmt.Errorf("%w: pattern is required", ErrInvalidRecurrence)
	default:
		return Weekly{}, fmt.Errorf("%w: unsupported cadence %q", ErrInvalidRecurrence, pattern.Cadence())
	}

	if w.OccurrenceCount < 1 {
		return Weekly{}, fmt.Errorf("%w: occurrence count must be at least 1", ErrInvalidRecurrence)
	}
	if limit := e.MaxOccurrences(); w.OccurrenceCount > limit {
		return Weekly{}, fmt.Errorf("%w: occurrence count %d exceeds limit %d", ErrInvalidRecurrence, w.OccurrenceCount, limit)
	}
	return w, nil
}
