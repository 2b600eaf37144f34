// Package helpers provides test utilities for end-to-end API tests.
//
// # Stack
//
// NewStack wires the real handlers, services and middleware over a fresh
// in-memory SQLite store:
//
//	s := helpers.NewStack(t)
//	userID := fixtures.NewUserID()
//	s.Fixtures.CreateCharacter(t, userID)
//
// # Requests
//
// Build requests with a signed token and optional idempotency key:
//
//	req := helpers.NewRequest(t, http.MethodPatch, "/v1/users/me/character").
//		WithToken(s.Token(t, userID)).
//		WithBody(map[string]int{"money": 50}).
//		Build()
//	resp := s.Do(req)
//
// # Assertions
//
//	helpers.AssertStatus(t, resp, http.StatusOK)
//	helpers.AssertProblemDetails(t, resp, http.StatusNotFound, model.ErrCodeNotFound)
//	helpers.AssertValidationError(t, resp, "money")
//	helpers.DecodeData(t, resp, &character)
package helpers
