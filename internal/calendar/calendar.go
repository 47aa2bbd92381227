// Package calendar renders a resource's bookings as an iCalendar feed.
package calendar

import (
	"fmt"
	"io"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/example/deskbook/internal/booking"
)

// ProductID identifies the feed producer in PRODID.
const ProductID = "-//deskbook//desk reservations//EN"

// SeriesProperty carries the series id of recurring bookings.
const SeriesProperty = ical.ComponentProperty("X-DESKBOOK-SERIES-ID")

// ContentType is the media type of the rendered feed.
const ContentType = "text/calendar; charset=utf-8"

// Build returns a PUBLISH calendar with one VEVENT per booking. stamp fills DTSTAMP.
func Build(resourceID string, bookings []booking.Booking, stamp time.Time) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	cal.SetName("Desk " + resourceID)

	for _, b := range bookings {
		event := cal.AddEvent(UID(b.ID))
		event.SetDtStampTime(stamp.UTC())
		if !b.CreatedAt.IsZero() {
			event.SetCreatedTime(b.CreatedAt.UTC())
		}
		event.SetStartAt(b.Range.Start.UTC())
		event.SetEndAt(b.Range.End.UTC())
		event.SetSummary(fmt.Sprintf("%s reserved by %s", resourceID, b.UserID))
		event.SetLocation(resourceID)
		if b.SeriesID != "" {
			event.SetProperty(SeriesProperty, b.SeriesID)
		}
	}
	return cal
}

// Write serializes the calendar for resourceID to w.
func Write(w io.Writer, resourceID string, bookings []booking.Booking, stamp time.Time) error {
	if _, err := io.WriteString(w, Build(resourceID, bookings, stamp).Serialize()); err != nil {
		return fmt.Errorf("calendar: write: %w", err)
	}
	return nil
}

// UID returns the VEVENT UID for a booking id.
func UID(bookingID string) string {
	return bookingID + "@deskbook"
}
