package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forgo/questline/api/internal/logger"
	"github.com/forgo/questline/api/internal/model"
)

// StoredResponse is a completed response kept for replay.
type StoredResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

// ErrRequestInFlight is returned by Reserve while another request holds the
// same key.
var ErrRequestInFlight = errors.New("request with this idempotency key is in progress")

// IdempotencyStore records responses by key. Reserve either returns a stored
// response, claims the key for the caller, or fails with ErrRequestInFlight.
// A claimed key is finished with Save or given up with Release.
type IdempotencyStore interface {
	Reserve(ctx context.Context, key string) (*StoredResponse, error)
	Save(ctx context.Context, key string, resp *StoredResponse) error
	Release(ctx context.Context, key string) error
}

// IdempotencyConfig holds configuration for idempotency stores
type IdempotencyConfig struct {
	TTL     time.Duration // How long to keep responses (default 24h)
	LockTTL time.Duration // How long a claim survives a crashed request (default 1m)
	Cleanup time.Duration // Memory store cleanup interval (default 1h)
}

func (c IdempotencyConfig) withDefaults() IdempotencyConfig {
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
	if c.LockTTL == 0 {
		c.LockTTL = time.Minute
	}
	if c.Cleanup == 0 {
		c.Cleanup = time.Hour
	}
	return c
}

// ===== Memory store =====

// MemoryIdempotencyStore keeps responses in process. It suits a single
// instance and tests.
type MemoryIdempotencyStore struct {
	mu       sync.Mutex
	entries  map[string]*idempotencyEntry
	ttl      time.Duration
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
}

type idempotencyEntry struct {
	resp      *StoredResponse
	expiresAt time.Time
}

// NewMemoryIdempotencyStore creates a store and starts its cleanup loop
func NewMemoryIdempotencyStore(cfg IdempotencyConfig) *MemoryIdempotencyStore {
	cfg = cfg.withDefaults()
	store := &MemoryIdempotencyStore{
		entries:  make(map[string]*idempotencyEntry),
		ttl:      cfg.TTL,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
	go store.cleanupLoop(cfg.Cleanup)
	return store
}

// Stop stops the cleanup goroutine
func (s *MemoryIdempotencyStore) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
}

func (s *MemoryIdempotencyStore) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopChan:
			return
		}
	}
}

func (s *MemoryIdempotencyStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, entry := range s.entries {
		if entry.resp != nil && entry.expiresAt.Before(now) {
			delete(s.entries, key)
		}
	}
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key string) (*StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok {
		switch {
		case entry.resp == nil:
			return nil, ErrRequestInFlight
		case entry.expiresAt.After(s.now()):
			return entry.resp, nil
		}
	}
	s.entries[key] = &idempotencyEntry{}
	return nil, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, key string, resp *StoredResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = &idempotencyEntry{resp: resp, expiresAt: s.now().Add(s.ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// ===== Redis store =====

const (
	redisKeyPrefix = "questline:idempotency:"
	pendingMarker  = "pending"
)

// RedisIdempotencyStore shares responses across instances. A claim is a
// SET NX of a pending marker with a short TTL, replaced by the response on
// Save.
type RedisIdempotencyStore struct {
	client  redis.UniversalClient
	ttl     time.Duration
	lockTTL time.Duration
}

func NewRedisIdempotencyStore(client redis.UniversalClient, cfg IdempotencyConfig) *RedisIdempotencyStore {
	cfg = cfg.withDefaults()
	return &RedisIdempotencyStore{client: client, ttl: cfg.TTL, lockTTL: cfg.LockTTL}
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string) (*StoredResponse, error) {
	claimed, err := s.client.SetNX(ctx, redisKeyPrefix+key, pendingMarker, s.lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("reserve idempotency key: %w", err)
	}
	if claimed {
		return nil, nil
	}

	raw, err := s.client.Get(ctx, redisKeyPrefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// expired between the two calls
		return s.Reserve(ctx, key)
	case err != nil:
		return nil, fmt.Errorf("read idempotency key: %w", err)
	case string(raw) == pendingMarker:
		return nil, ErrRequestInFlight
	}

	var resp StoredResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode stored response: %w", err)
	}
	return &resp, nil
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, resp *StoredResponse) error {
	raw, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("encode stored response: %w", err)
	}
	return s.client.Set(ctx, redisKeyPrefix+key, raw, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}

// ===== Middleware =====

// generateKey creates a unique key from user ID, idempotency key, and request fingerprint
func generateKey(userID, idempotencyKey, method, path string, body []byte) string {
	h := sha256.New()
	for _, part := range []string{userID, idempotencyKey, method, path} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

// idempotencyResponseWriter captures the response for caching
type idempotencyResponseWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *idempotencyResponseWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *idempotencyResponseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// Idempotency replays the stored response for a POST or PATCH repeated with
// the same Idempotency-Key, user, path and body. 5xx responses are not
// stored so that a client may retry them. Store failures fall through to
// normal processing.
func Idempotency(store IdempotencyStore, log *logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			idempotencyKey := r.Header.Get("Idempotency-Key")
			if idempotencyKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID := GetUserID(r.Context())
			if userID == "" {
				userID = r.RemoteAddr
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				model.NewBadRequestError("could not read request body").WriteJSON(w)
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			ctx := r.Context()
			key := generateKey(userID, idempotencyKey, r.Method, r.URL.Path, body)

			stored, err := store.Reserve(ctx, key)
			switch {
			case errors.Is(err, ErrRequestInFlight):
				model.NewConflictError(err.Error()).WriteJSON(w)
				return
			case err != nil:
				log.Warn("idempotency store unavailable", "error", err, "request_id", GetRequestID(ctx))
				next.ServeHTTP(w, r)
				return
			case stored != nil:
				replay(w, stored)
				return
			}

			irw := &idempotencyResponseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(irw, r)

			// the request context may already be cancelled
			bg := context.WithoutCancel(ctx)
			if irw.status >= http.StatusInternalServerError {
				if err := store.Release(bg, key); err != nil {
					log.Warn("release idempotency key", "error", err)
				}
				return
			}
			resp := &StoredResponse{Status: irw.status, Header: irw.Header().Clone(), Body: irw.body.Bytes()}
			resp.Header.Del("X-Request-ID")
			if err := store.Save(bg, key, resp); err != nil {
				log.Warn("save idempotent response", "error", err)
			}
		})
	}
}

func replay(w http.ResponseWriter, resp *StoredResponse) {
	for k, v := range resp.Header {
		for _, val := range v {
			w.Header().Add(k, val)
		}
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(resp.Status)
	_, _ = w.Write(resp.Body)
}
