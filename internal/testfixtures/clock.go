package testfixtures

import (
	"sync"
	"time"
)

// Clock is a manual time source handed to services as their now function.
// A non-zero step moves the clock forward after every reading, so each call
// the service makes to now is observable in the timestamps it stamps.
type Clock struct {
	mu      sync.Mutex
	current time.Time
	step    time.Duration
}

// NewClock returns a clock frozen at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	return NewTickingClock(start, 0)
}

// NewTickingClock returns a clock that advances by step after each reading.
func NewTickingClock(start time.Time, step time.Duration) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start, step: step}
}

// Now returns the current instant and then applies the configured step.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.current
	c.current = c.current.Add(c.step)
	return now
}

// NowFunc exposes Now for injection; a nil clock falls back to time.Now.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

// Peek returns the instant the next Now call will report.
func (c *Clock) Peek() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d, e.g. between two bookings.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}
