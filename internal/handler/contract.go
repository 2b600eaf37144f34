package handler

import (
	"context"
	"net/http"

	"github.com/forgo/questline/api/internal/middleware"
	"github.com/forgo/questline/api/internal/model"
	"github.com/forgo/questline/api/internal/progression"
)

// RewardService is the part of service.RewardService the HTTP layer needs.
type RewardService interface {
	Distribute(ctx context.Context, contractID, userID string, deltas progression.Deltas) (*model.DistributionResult, error)
	CompleteContract(ctx context.Context, contractID, userID string) (*model.CompletionResult, error)
}

// ContractHandler handles reward requests for a contract
type ContractHandler struct {
	svc RewardService
}

// NewContractHandler creates a new contract handler
func NewContractHandler(svc RewardService) *ContractHandler {
	return &ContractHandler{svc: svc}
}

// Distribute handles POST /v1/contracts/{contractId}/distribute
//
// A partial fan-out answers 207 and a fully failed one 503; both carry the
// per-guild outcomes so the client can see which guilds were updated.
func (h *ContractHandler) Distribute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	contractID := r.PathValue("contractId")
	if contractID == "" {
		WriteError(w, model.NewBadRequestError("contract ID required"))
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

	result, err := h.svc.Distribute(ctx, contractID, userID, deltas)
	switch {
	case err != nil && result != nil:
		WriteData(w, distributionStatus(err), result, nil)
	case err != nil:
		WriteError(w, MapServiceError(err))
	default:
		WriteData(w, http.StatusOK, result, nil)
	}
}

// Complete handles POST /v1/contracts/{contractId}/complete
//
// Once the contract has been finished the reward steps are not rolled back,
// so any failure after that point answers 207 with the completion result.
func (h *ContractHandler) Complete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	if userID == "" {
		WriteError(w, model.NewUnauthorizedError("authentication required"))
		return
	}

	contractID := r.PathValue("contractId")
	if contractID == "" {
		WriteError(w, model.NewBadRequestError("contract ID required"))
		return
	}

	result, err := h.svc.CompleteContract(ctx, contractID, userID)
	switch {
	case err != nil && result != nil:
		WriteData(w, http.StatusMultiStatus, result, nil)
	case err != nil:
		WriteError(w, MapServiceError(err))
	default:
		WriteData(w, http.StatusOK, result, nil)
	}
}
