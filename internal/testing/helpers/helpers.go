// Package helpers provides common test utilities for end-to-end testing.
//
// This package includes an in-process API stack over an in-memory SQLite
// store, HTTP request builders and assertion helpers for the responses.
package helpers

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/forgo/questline/api/internal/database"
	"github.com/forgo/questline/api/internal/handler"
	"github.com/forgo/questline/api/internal/logger"
	"github.com/forgo/questline/api/internal/middleware"
	"github.com/forgo/questline/api/internal/model"
	"github.com/forgo/questline/api/internal/service"
	"github.com/forgo/questline/api/internal/sqlstore"
	"github.com/forgo/questline/api/internal/testing/fixtures"
	"github.com/forgo/questline/api/pkg/jwt"
)

// ============================================================================
// Service Factory Helpers
// ============================================================================

// NewTestJWTService creates a JWT service with an in-memory key
func NewTestJWTService(t *testing.T) *jwt.Service {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("helpers: failed to generate RSA key: %v", err)
	}

	return jwt.NewTestService(privateKey, "questline-test", 15*time.Minute)
}

// Stack is a fully wired API served in-process
type Stack struct {
	Handler  http.Handler
	JWT      *jwt.Service
	Store    *sqlstore.Store
	Fixtures *fixtures.Factory
	Progress *service.ProgressionService
	Rewards  *service.RewardService
}

// NewStack builds the API over a fresh in-memory SQLite database with the
// same middleware the server uses.
func NewStack(t *testing.T) *Stack {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dsn := "file:e2e_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := database.OpenSQL(ctx, database.DriverSQLite, dsn, nil)
	if err != nil {
		t.Fatalf("helpers: open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = database.CloseSQL(db) })

	store := sqlstore.New(db, nil)
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("helpers: migrate: %v", err)
	}

	progress := service.NewProgressionService(service.ProgressionServiceConfig{
		Store:  store,
		Guilds: store,
	})
	rewards := service.NewRewardService(service.RewardServiceConfig{
		Directory:         store,
		Progress:          progress,
		FanOutConcurrency: 4,
	})

	log := logger.Nop()
	idem := middleware.NewMemoryIdempotencyStore(middleware.IdempotencyConfig{})
	t.Cleanup(idem.Stop)

	jwtService := NewTestJWTService(t)

	mux := http.NewServeMux()
	handler.Routes{
		Health:      handler.NewHealthHandler(store, database.DriverSQLite),
		Progression: handler.NewProgressionHandler(progress),
		Contracts:   handler.NewContractHandler(rewards),
	}.Register(mux, func(next http.Handler) http.Handler {
		return middleware.Chain(next,
			middleware.Auth(jwtService),
			middleware.Idempotency(idem, log),
		)
	})

	return &Stack{
		Handler:  middleware.Chain(mux, middleware.RequestID, middleware.Recovery(log)),
		JWT:      jwtService,
		Store:    store,
		Fixtures: fixtures.New(store, store),
		Progress: progress,
		Rewards:  rewards,
	}
}

// Do serves req and returns the recorded response
func (s *Stack) Do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, req)
	return rec
}

// Token signs an access token for userID
func (s *Stack) Token(t *testing.T, userID string) string {
	t.Helper()

	token, err := s.JWT.Sign(jwt.Claims{UserID: userID, Role: "user"})
	if err != nil {
		t.Fatalf("helpers: sign token: %v", err)
	}
	return token
}

// ============================================================================
// Request Builder
// ============================================================================

// RequestBuilder helps construct HTTP requests for testing
type RequestBuilder struct {
	t       *testing.T
	method  string
	path    string
	body    interface{}
	headers map[string]string
	token   string
}

// NewRequest creates a new request builder
func NewRequest(t *testing.T, method, path string) *RequestBuilder {
	return &RequestBuilder{
		t:       t,
		method:  method,
		path:    path,
		headers: make(map[string]string),
	}
}

// WithBody sets the JSON request body
func (rb *RequestBuilder) WithBody(body interface{}) *RequestBuilder {
	rb.body = body
	return rb
}

// WithHeader adds a header to the request
func (rb *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	rb.headers[key] = value
	return rb
}

// WithIdempotencyKey sets the Idempotency-Key header
func (rb *RequestBuilder) WithIdempotencyKey(key string) *RequestBuilder {
	return rb.WithHeader("Idempotency-Key", key)
}

// WithToken sets the bearer token
func (rb *RequestBuilder) WithToken(token string) *RequestBuilder {
	rb.token = token
	return rb
}

// Build creates the HTTP request
func (rb *RequestBuilder) Build() *http.Request {
	rb.t.Helper()

	var bodyReader io.Reader
	if rb.body != nil {
		bodyBytes, err := json.Marshal(rb.body)
		if err != nil {
			rb.t.Fatalf("helpers: failed to marshal body: %v", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req := httptest.NewRequest(rb.method, rb.path, bodyReader)
	if rb.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range rb.headers {
		req.Header.Set(k, v)
	}
	if rb.token != "" {
		req.Header.Set("Authorization", "Bearer "+rb.token)
	}

	return req
}

// ============================================================================
// Response Assertion Helpers
// ============================================================================

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, resp *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if resp.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, resp.Code, resp.Body.String())
	}
}

// AssertProblemDetails validates an RFC 9457 Problem Details error response
func AssertProblemDetails(t *testing.T, resp *httptest.ResponseRecorder, expectedStatus int, expectedCode model.ErrorCode) {
	t.Helper()

	AssertStatus(t, resp, expectedStatus)

	var problem model.ProblemDetails
	bodyBytes := resp.Body.Bytes()
	if err := json.Unmarshal(bodyBytes, &problem); err != nil {
		t.Fatalf("failed to decode problem details: %v. Body: %s", err, string(bodyBytes))
	}

	if problem.Status != expectedStatus {
		t.Errorf("expected problem.status %d, got %d", expectedStatus, problem.Status)
	}

	if expectedCode != 0 && problem.Code != expectedCode {
		t.Errorf("expected problem.code %d, got %d", expectedCode, problem.Code)
	}
}

// AssertValidationError checks for a validation error on a specific field
func AssertValidationError(t *testing.T, resp *httptest.ResponseRecorder, field string) {
	t.Helper()

	AssertStatus(t, resp, http.StatusUnprocessableEntity)

	var problem model.ProblemDetails
	if err := json.Unmarshal(resp.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to decode problem details: %v", err)
	}

	for _, fe := range problem.Errors {
		if fe.Field == field {
			return
		}
	}

	t.Errorf("expected validation error on field %q, but not found. Errors: %+v", field, problem.Errors)
}

// DecodeResponse decodes the response body into v
func DecodeResponse(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	bodyBytes := resp.Body.Bytes()
	if err := json.Unmarshal(bodyBytes, v); err != nil {
		t.Fatalf("failed to decode response: %v. Body: %s", err, string(bodyBytes))
	}
}

// DecodeData decodes the "data" field of a standard response into v
func DecodeData(t *testing.T, resp *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	bodyBytes := resp.Body.Bytes()
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		t.Fatalf("failed to decode response: %v. Body: %s", err, string(bodyBytes))
	}
	if err := json.Unmarshal(envelope.Data, v); err != nil {
		t.Fatalf("failed to decode data: %v. Body: %s", err, string(bodyBytes))
	}
}
