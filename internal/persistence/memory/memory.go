package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/deskbook/internal/persistence"
)

// Storage provides an in-memory persistence layer implementation.
type Storage struct {
	mu        sync.RWMutex
	resources map[string]persistence.Resource
	bookings  map[string]persistence.Booking
	// byResource keeps booking IDs per resource so overlap checks stay local.
	byResource map[string][]string
}

// Open returns a new empty Storage instance.
func Open() *Storage {
	return &Storage{
		resources:  make(map[string]persistence.Resource),
		bookings:   make(map[string]persistence.Booking),
		byResource: make(map[string][]string),
	}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- ResourceRepository implementation ---

// UpsertResource stores or replaces a desk.
func (s *Storage) UpsertResource(ctx context.Context, resource persistence.Resource) error {
	if resource.ID == "" {
		return fmt.Errorf("memory: resource id is required: %w", persistence.ErrConstraintViolation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.resources[resource.ID]; ok && resource.CreatedAt.IsZero() {
		resource.CreatedAt = existing.CreatedAt
	}
	s.resources[resource.ID] = resource
	return nil
}

// GetResource retrieves a desk by ID.
func (s *Storage) GetResource(ctx context.Context, id string) (persistence.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resource, ok := s.resources[id]
	if !ok {
		return persistence.Resource{}, persistence.ErrNotFound
	}
	return resource, nil
}

// ListResources returns all desks ordered by ID.
func (s *Storage) ListResources(ctx context.Context) ([]persistence.Resource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resources := make([]persistence.Resource, 0, len(s.resources))
	for _, resource := range s.resources {
		resources = append(resources, resource)
	}
	sort.Slice(resources, func(i, j int) bool {
		return resources[i].ID < resources[j].ID
	})
	return resources, nil
}

// --- BookingRepository implementation ---

// FindBookings returns bookings of resourceID intersecting [from, to).
func (s *Storage) FindBookings(ctx context.Context, resourceID string, from, to time.Time) ([]persistence.Booking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	window := persistence.Booking{ResourceID: resourceID, StartAt: from, EndAt: to}
	var matches []persistence.Booking
	for _, id := range s.byResource[resourceID] {
		b := s.bookings[id]
		if b.Overlaps(window) {
			matches = append(matches, b)
		}
	}
	sortBookings(matches)
	return matches, nil
}

// InsertBookings stores the batch atomically. The lock is held across the
// overlap check and the writes.
func (s *Storage) InsertBookings(ctx context.Context, resourceID string, bookings []persistence.Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := s.resources[resourceID]; !ok {
		return fmt.Errorf("memory: resource %s: %w", resourceID, persistence.ErrNotFound)
	}

	for i, candidate := range bookings {
		if candidate.ResourceID != resourceID {
			return fmt.Errorf("memory: booking %s belongs to resource %s, batch is for %s: %w",
				candidate.ID, candidate.ResourceID, resourceID, persistence.ErrConstraintViolation)
		}
		if !candidate.StartAt.Before(candidate.EndAt) {
			return fmt.Errorf("memory: booking %s has an empty range: %w", candidate.ID, persistence.ErrConstraintViolation)
		}
		if _, ok := s.bookings[candidate.ID]; ok {
			return fmt.Errorf("memory: booking %s already exists: %w", candidate.ID, persistence.ErrDuplicate)
		}
		for _, id := range s.byResource[resourceID] {
			if existing := s.bookings[id]; existing.Overlaps(candidate) {
				return fmt.Errorf("memory: booking overlaps %s: %w", existing.ID, persistence.ErrConstraintViolation)
			}
		}
		for _, sibling := range bookings[:i] {
			if sibling.Overlaps(candidate) {
				return fmt.Errorf("memory: booking overlaps sibling %s: %w", sibling.ID, persistence.ErrConstraintViolation)
			}
			if sibling.ID == candidate.ID {
				return fmt.Errorf("memory: booking %s repeated in batch: %w", candidate.ID, persistence.ErrDuplicate)
			}
		}
	}

	for _, b := range bookings {
		s.bookings[b.ID] = b
		s.byResource[resourceID] = append(s.byResource[resourceID], b.ID)
	}
	return nil
}

// GetBooking retrieves a booking by ID.
func (s *Storage) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, ok := s.bookings[id]
	if !ok {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	return b, nil
}

// DeleteBooking removes a booking by ID.
func (s *Storage) DeleteBooking(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.bookings[id]
	if !ok {
		return persistence.ErrNotFound
	}
	delete(s.bookings, id)
	s.byResource[b.ResourceID] = removeString(s.byResource[b.ResourceID], id)
	return nil
}

func sortBookings(bookings []persistence.Booking) {
	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].StartAt.Equal(bookings[j].StartAt) {
			return bookings[i].ID < bookings[j].ID
		}
		return bookings[i].StartAt.Before(bookings[j].StartAt)
	})
}

func removeString(values []string, target string) []string {
	result := values[:0]
	for _, v := range values {
		if v != target {
			result = append(result, v)
		}
	}
	return result
}
