// Package http exposes the front-desk occupancy core over a gin router.
//
// The router serves the following endpoints:
//   - GET /rooms, POST /rooms, PUT /rooms/{number}: room directory. The
//     maintenance field of the `roomDTO` payload takes a room out of service.
//   - GET /occupancy?from=&to=&rooms=: day-by-day occupancy grid for the closed
//     window [from, to]. rooms is a comma separated filter.
//   - GET /availability?room=&from=&to=&mode=&accept_reserved=: one
//     availability decision without a session overlay.
//   - POST /sessions, GET /sessions/{id}, DELETE /sessions/{id}: working
//     sessions holding staged selections.
//   - POST /sessions/{id}/selections, DELETE /sessions/{id}/selections/{selectionID}:
//     stage or unstage one selection. Rejections answer 409 with the reason code.
//   - POST /sessions/{id}/commit: persist every staged selection atomically.
//     Conflicts answer 409 and list each conflicting selection.
//   - GET /metrics, GET /healthz.
//
// Dates are calendar days formatted YYYY-MM-DD. Request DTOs live alongside
// their handlers and are checked with go-playground/validator.
package http
