// Package http provides HTTP handlers and middleware for the reservation API.
//
// The router exposes the following endpoints:
//   - POST /reservations: books a room. Body mirrors createReservationRequest in
//     dto.go; ids may be JSON strings or numbers. Returns 201 with
//     {"reservation_id"} plus "recurring_instances" and "total_reservations"
//     when a series was written.
//   - PUT /reservations/{id}: edits one occurrence or, with "edit_scope":"series",
//     the whole series. A body "id" must match the path. Returns
//     {"success","affected_rows","edit_scope"}.
//   - GET /reservations/{id}/series: lists the series containing the reservation
//     ordered by start time.
//   - GET /rooms/{id}/availability?start_time=&end_time=&exclude_id=: read-only
//     conflict probe returning {"available","conflict"}.
//   - GET /healthz: pings the store, unauthenticated.
//
// Every endpoint except /healthz requires "Authorization: Bearer <jwt>" signed
// with HS256. Errors are always {"error": "..."}.
package http
