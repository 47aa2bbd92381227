package persistence

import "time"

// Resource is a bookable desk.
type Resource struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Booking is a stored reservation covering [StartAt, EndAt).
type Booking struct {
	ID         string
	ResourceID string
	UserID     string
	SeriesID   string
	StartAt    time.Time
	EndAt      time.Time
	CreatedAt  time.Time
}

// Overlaps reports whether b and other strictly intersect on the same resource.
func (b Booking) Overlaps(other Booking) bool {
	return b.ResourceID == other.ResourceID &&
		b.StartAt.Before(other.EndAt) &&
		b.EndAt.After(other.StartAt)
}
