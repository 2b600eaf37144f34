// Package handler provides HTTP request handlers for the Questline API.
//
// # Handler Pattern
//
// All handlers follow a consistent pattern:
//
//   - Constructor function (NewXxxHandler) accepts the service it calls,
//     through a small interface so tests can substitute func-field mocks
//   - The acting user comes from the auth middleware via middleware.GetUserID
//   - Errors are mapped to RFC 9457 Problem Details by MapServiceError
//
// # Deltas on the wire
//
// Update bodies carry signed whole numbers:
//
//	PATCH /v1/users/me/character
//	{"money": 50, "experience": 100, "attributes": {"wisdom": 1}}
//
// Fractional, non-finite or oversized numbers and unknown attribute names
// are rejected with 422 before the service is called. Responses list the
// fields that were clamped at a bound.
//
// # Partial results
//
// A reward fan-out that updated some guilds but not others answers 207 with
// the per-guild outcomes; one that updated none answers 503 with the same
// body. Nothing is rolled back.
package handler
