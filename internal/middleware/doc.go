// Package middleware provides HTTP middleware for the Questline API.
//
// # Available Middleware
//
//   - RequestID: assigns or propagates X-Request-ID
//   - Logger: one zap log line per request
//   - Recovery: turns panics into a 500 problem response
//   - CORS: origin allow-list and preflight handling
//   - Auth: bearer token validation
//   - Idempotency: replays stored responses for repeated Idempotency-Key requests
//
// # Authentication
//
// Auth validates the bearer token and puts the acting user into the request
// context:
//
//	userID := middleware.GetUserID(r.Context())
//
// # Idempotency
//
// Reward operations are at-least-once. Clients that retry a POST or PATCH
// should send an Idempotency-Key header; a repeated request with the same
// key, user, path and body gets the first response back instead of applying
// the deltas twice. Responses live in a MemoryIdempotencyStore or, when
// several instances share traffic, a RedisIdempotencyStore.
package middleware
