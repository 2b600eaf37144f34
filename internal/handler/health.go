package handler

import (
	"context"
	"net/http"
	"time"
)

// Pinger reports whether the progress store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves GET /health
type HealthHandler struct {
	store   Pinger
	driver  string
	timeout time.Duration
}

// NewHealthHandler creates a health handler for the named store driver
func NewHealthHandler(store Pinger, driver string) *HealthHandler {
	return &HealthHandler{store: store, driver: driver, timeout: 2 * time.Second}
}

type healthStatus struct {
	Status string `json:"status"`
	Store  string `json:"store"`
	Error  string `json:"error,omitempty"`
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, healthStatus{Status: "unavailable", Store: h.driver, Error: err.Error()})
		return
	}
	WriteJSON(w, http.StatusOK, healthStatus{Status: "ok", Store: h.driver})
}
