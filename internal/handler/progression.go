package handler

import (
	"context"
	"net/http"

	"github.com/forgo/questline/api/internal/middleware"
	"github.com/forgo/questline/api/internal/model"
	"github.com/forgo/questline/api/internal/progression"
)

// ProgressionService is the part of service.ProgressionService the HTTP
// layer needs.
type ProgressionService interface {
	GetCharacter(ctx context.Context, userID string) (*model.Character, error)
	UpdateCharacter(ctx context.Context, userID string, deltas progression.Deltas) (*model.Character, []progression.Field, error)
	ListMyProgress(ctx context.Context, userID string) ([]*model.GuildProgress, error)
	GetMyProgress(ctx context.Context, userID, progressID string) (*model.GuildProgress, error)
	UpdateMyProgress(ctx context.Context, userID, progressID string, deltas progression.Deltas) (*model.GuildProgress, []progression.Field, error)
}

// CharacterUpdate is the response to a character update. Clamped lists the
// fields that hit a bound.
type CharacterUpdate struct {
	Character *model.Character    `json:"character"`
	Clamped   []progression.Field `json:"clamped"`
}

// ProgressUpdate is the response to a guild progress update.
type ProgressUpdate struct {
	Progress *model.GuildProgress `json:"progress"`
	Clamped  []progression.Field  `json:"clamped"`
}

// ProgressionHandler handles character and guild progress requests
type ProgressionHandler struct {
	svc ProgressionService
}

// NewProgressionHandler creates a new progression handler
func NewProgressionHandler(svc ProgressionService) *ProgressionHandler {
	return &ProgressionHandler{svc: svc}
}

// GetCharacter handles GET /v1/users/me/character
func (h *ProgressionHandler) GetCharacter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	character, err := h.svc.GetCharacter(ctx, userID)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteData(w, http.StatusOK, character, map[string]string{
		"self":     "/v1/users/me/character",
		"progress": "/v1/progress",
	})
}

// UpdateCharacter handles PATCH /v1/users/me/character
func (h *ProgressionHandler) UpdateCharacter(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	var req CharacterDeltaRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	deltas, fieldErrs := req.Deltas()
	if len(fieldErrs) > 0 {
		WriteError(w, model.NewValidationError(fieldErrs))
		return
	}

	character, clamped, err := h.svc.UpdateCharacter(ctx, userID, deltas)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteData(w, http.StatusOK, CharacterUpdate{Character: character, Clamped: nonNil(clamped)}, nil)
}

// ListProgress handles GET /v1/progress
func (h *ProgressionHandler) ListProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	records, err := h.svc.ListMyProgress(ctx, userID)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}
	if records == nil {
		records = []*model.GuildProgress{}
	}

	WriteData(w, http.StatusOK, records, nil)
}

// GetProgress handles GET /v1/progress/{progressId}
func (h *ProgressionHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	progressID := r.PathValue("progressId")
	if progressID == "" {
		WriteError(w, model.NewBadRequestError("progress ID required"))
		return
	}

	record, err := h.svc.GetMyProgress(ctx, userID, progressID)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteData(w, http.StatusOK, record, map[string]string{"self": "/v1/progress/" + progressID})
}

// UpdateProgress handles PATCH /v1/progress/{progressId}
func (h *ProgressionHandler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	progressID := r.PathValue("progressId")
	if progressID == "" {
		WriteError(w, model.NewBadRequestError("progress ID required"))
		return
	}

	var req ExperienceRequest
	if err := DecodeJSON(r, &req); err != nil {
		WriteError(w, model.NewBadRequestError("invalid request body"))
		return
	}
	deltas, fieldErrs := req.Deltas()
	if len(fieldErrs) > 0 {
		WriteError(w, model.NewValidationError(fieldErrs))
		return
	}

	record, clamped, err := h.svc.UpdateMyProgress(ctx, userID, progressID, deltas)
	if err != nil {
		WriteError(w, MapServiceError(err))
		return
	}

	WriteData(w, http.StatusOK, ProgressUpdate{Progress: record, Clamped: nonNil(clamped)}, nil)
}

func nonNil(fields []progression.Field) []progression.Field {
	if fields == nil {
		return []progression.Field{}
	}
	return fields
}
