// Package http provides the gin router, handlers and middleware for the deskbook API.
//
// Every route except /healthz requires an HS256 bearer token whose `sub` claim is
// the user id and whose optional `admin` claim grants administrator rights.
//
// The router exposes the following endpoints:
//   - GET /healthz: liveness probe.
//   - GET /resources/:id/availability: slots across ?start=&end= (RFC 3339) or
//     across the configured working hours of ?date=YYYY-MM-DD. Response:
//     {"resource_id","slots":[{"start","end","status","booking_id"}]}.
//   - POST /resources/:id/bookings: body {"start","end","user_id"}. Responds 201
//     with {"booking":bookingDTO}.
//   - POST /resources/:id/recurring-bookings: body {"cadence","occurrence_count",
//     "start","end","user_id"}. Responds 201 with {"series_id","bookings":[...]}.
//     A clash responds 409 with error_code BOOKING_CONFLICT and the offending
//     occurrence index.
//   - GET /resources/:id/calendar.ics: text/calendar export of ?start=&end=.
//   - DELETE /bookings/:id: cancels a booking. Responds 204.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
