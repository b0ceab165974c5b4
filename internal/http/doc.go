// Package http exposes the local JSON API over net/http.
//
// Every endpoint except /healthz and /metrics requires the X-User-ID header;
// requests without it are answered with 401.
//   - GET /calendars, POST /calendars, GET|PUT|DELETE /calendars/{id}: calendar
//     management exchanging `calendarDTO`.
//   - GET /events, POST /events, GET|PUT|DELETE /events/{uid}: event definitions
//     exchanging `eventDTO`. Durations use RFC 5545 text ("PT1H").
//   - GET /instances?start=&end=: expanded occurrences in [start, end), RFC 3339 bounds.
//   - POST /sync, GET /sync/status: run a sync pass and report engine state.
//   - POST /extractions, GET|DELETE /extractions/{session},
//     POST /pending-events/{id}/approve|reject: AI extraction review workflow.
//   - GET /export.ics, POST /import.ics?calendar_id=: iCalendar exchange.
//   - GET /metrics (Prometheus), GET /healthz.
//
// Sync and extraction routes are only mounted when a remote store or an
// extraction service is configured.
//
// Service errors are mapped to statuses through application.ErrorKind:
// validation and parse 422, not_found 404, conflict and concurrency 409,
// offline 503, remote 502.
package http
