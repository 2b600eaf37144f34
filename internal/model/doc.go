// Package model defines domain entities and data structures for the Questline API.
//
// # Domain Entities
//
//   - Entity: a stored record with accumulable fields, addressed by EntityRef
//   - Character, GuildProgress: the API views of the two entity kinds
//   - Guild, Quest, Contract: the quest directory a reward is resolved against
//   - DistributionResult, CompletionResult: per-guild outcomes of a reward
//
// A guild progress record is addressed either by its id or by the composite
// key (user, guild); at most one record exists per key.
//
//	ref := model.GuildProgressKey("user:42", "guild:smiths")
//
// # Error Types
//
// RFC 9457 Problem Details errors are defined in errors.go:
//
//	type ProblemDetails struct {
//	    Type    string    `json:"type"`
//	    Title   string    `json:"title"`
//	    Status  int       `json:"status"`
//	    Detail  string    `json:"detail"`
//	}
package model
