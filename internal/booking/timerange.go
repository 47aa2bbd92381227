package booking

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange indicates a time range whose start is not strictly before its end.
var ErrInvalidRange = errors.New("booking: start must be before end")

// Precision is the finest time resolution every store preserves. PostgreSQL
// timestamptz keeps microseconds.
const Precision = time.Microsecond

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Validate reports ErrInvalidRange when the range is empty, inverted or unset.
func (r TimeRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if !r.Start.Before(r.End) {
		return ErrInvalidRange
	}
	return nil
}

// Truncate rounds both bounds down to Precision.
func (r TimeRange) Truncate() TimeRange {
	return TimeRange{Start: r.Start.Truncate(Precision), End: r.End.Truncate(Precision)}
}

// Duration returns End - Start.
func (r TimeRange) Duration() time.Duration {
	return r.End.Sub(r.Start)
}

// Overlaps reports strict intersection. Ranges that only touch at an endpoint
// do not overlap.
func (r TimeRange) Overlaps(other TimeRange) bool {
	return other.Start.Before(r.End) && other.End.After(r.Start)
}

// Clip intersects r with window. The boolean is false when nothing remains.
func (r TimeRange) Clip(window TimeRange) (TimeRange, bool) {
	if !r.Overlaps(window) {
		return TimeRange{}, false
	}
	out := r
	if out.Start.Before(window.Start) {
		out.Start = window.Start
	}
	if out.End.After(window.End) {
		out.End = window.End
	}
	return out, true
}

// Shift moves both endpoints by d.
func (r TimeRange) Shift(d time.Duration) TimeRange {
	return TimeRange{Start: r.Start.Add(d), End: r.End.Add(d)}
}

// In converts both endpoints to loc.
func (r TimeRange) In(loc *time.Location) TimeRange {
	if loc == nil {
		return r
	}
	return TimeRange{Start: r.Start.In(loc), End: r.End.In(loc)}
}

// Equal compares instants, ignoring location.
func (r TimeRange) Equal(other TimeRange) bool {
	return r.Start.Equal(other.Start) && r.End.Equal(other.End)
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.Start.Format(time.RFC3339), r.End.Format(time.RFC3339))
}
