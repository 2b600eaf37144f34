package handler

import (
	"errors"
	"net/http"

	"github.com/forgo/questline/api/internal/model"
	"github.com/forgo/questline/api/internal/service"
)

// MapServiceError converts a service error to a ProblemDetails response.
// This centralizes error handling logic for all handlers, ensuring consistent
// HTTP status codes and error messages across the API.
func MapServiceError(err error) *model.ProblemDetails {
	if err == nil {
		return nil
	}

	switch {
	// ===== Conflicts → 409 =====
	// Checked before the input class it wraps.
	case errors.Is(err, service.ErrContractNotActive):
		return model.NewConflictError("contract is not active")

	// ===== Not Found → 404 =====
	case errors.Is(err, service.ErrEntityNotFound):
		return model.NewNotFoundError("progress record")
	case errors.Is(err, service.ErrContractNotFound):
		return model.NewNotFoundError("contract")
	case errors.Is(err, service.ErrQuestNotFound):
		return model.NewNotFoundError("quest")
	case errors.Is(err, service.ErrNotFound):
		return model.NewNotFoundError("resource")

	// ===== Invalid Input → 422 =====
	case errors.Is(err, service.ErrInvalidInput):
		return model.NewUnprocessableError(err.Error())

	// ===== Store → 503 =====
	case errors.Is(err, service.ErrStoreUnavailable):
		return model.NewStoreUnavailableError("")
	}

	return model.NewInternalError("")
}

// distributionStatus picks the HTTP status for a fan-out that returned both
// a result and an error. Some guilds applied: 207. None applied: 503.
func distributionStatus(err error) int {
	if errors.Is(err, service.ErrDistributionFailed) {
		return http.StatusServiceUnavailable
	}
	return http.StatusMultiStatus
}
