// Package jobs implements background jobs for the Questline API.
//
// Jobs run independently of HTTP request handling. Each job has Start and
// Stop for the server lifecycle and RunOnce for tests and manual triggers.
//
//   - BoundsAuditor: clamps stored progress values that lie outside their
//     bounds, on BOUNDS_AUDIT_INTERVAL
//
// Jobs log errors and keep running; a failed pass is retried on the next
// tick.
package jobs
