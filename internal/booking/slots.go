package booking

// SlotStatus labels a slot of an availability partition.
type SlotStatus string

const (
	// SlotAvailable marks a gap with no reservation.
	SlotAvailable SlotStatus = "available"
	// SlotBooked marks the portion of a reservation inside the window.
	SlotBooked SlotStatus = "booked"
)

// Slot is one piece of an availability partition. BookingID is set for booked slots.
type Slot struct {
	Range     TimeRange
	Status    SlotStatus
	BookingID string
}

// ComputeSlots partitions window into contiguous available and booked slots.
//
// Bookings outside the window are ignored and partially overlapping bookings
// are clipped to it. The input slice is not modified. An invalid window yields
// no slots.
func ComputeSlots(window TimeRange, bookings []Booking) []Slot {
	if window.Validate() != nil {
		return nil
	}

	ordered := make([]Booking, len(bookings))
	copy(ordered, bookings)
	SortBookings(ordered)

	slots := make([]Slot, 0, 2*len(ordered)+1)
	cursor := window.Start

	for _, b := range ordered {
		clipped, ok := b.Range.Clip(window)
		if !ok {
			continue
		}
		// Overlapping input: skip whatever the previous booking already covered.
		if !clipped.End.After(cursor) {
			continue
		}
		if clipped.Start.After(cursor) {
			slots = append(slots, Slot{
				Range:  TimeRange{Start: cursor, End: clipped.Start},
				Status: SlotAvailable,
			})
			cursor = clipped.Start
		}
		slots = append(slots, Slot{
			Range:     TimeRange{Start: cursor, End: clipped.End},
			Status:    SlotBooked,
			BookingID: b.ID,
		})
		cursor = clipped.End
	}

	if cursor.Before(window.End) {
		slots = append(slots, Slot{
			Range:  TimeRange{Start: cursor, End: window.End},
			Status: SlotAvailable,
		})
	}

	return slots
}
