package handler

import (
	"net/http"

	"github.com/forgo/questline/api/internal/middleware"
)

// Routes bundles the handlers served by the API.
type Routes struct {
	Health      http.Handler
	Progression *ProgressionHandler
	Contracts   *ContractHandler
}

// Register mounts every route on mux. protect wraps the authenticated
// routes, typically Auth followed by Idempotency.
func (rt Routes) Register(mux *http.ServeMux, protect middleware.Middleware) {
	authed := func(h http.HandlerFunc) http.Handler { return protect(h) }

	mux.Handle("GET /health", rt.Health)

	// Character
	mux.Handle("GET /v1/users/me/character", authed(rt.Progression.GetCharacter))
	mux.Handle("PATCH /v1/users/me/character", authed(rt.Progression.UpdateCharacter))

	// Guild progress
	mux.Handle("GET /v1/progress", authed(rt.Progression.ListProgress))
	mux.Handle("GET /v1/progress/{progressId}", authed(rt.Progression.GetProgress))
	mux.Handle("PATCH /v1/progress/{progressId}", authed(rt.Progression.UpdateProgress))

	// Rewards
	mux.Handle("POST /v1/contracts/{contractId}/distribute", authed(rt.Contracts.Distribute))
	mux.Handle("POST /v1/contracts/{contractId}/complete", authed(rt.Contracts.Complete))
}
