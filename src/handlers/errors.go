package handlers

import (
	"errors"
	"net/http"

	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/engine"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/logger"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/refresh"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/security/validation"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/services"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/tags"
	"github.com/ricardocpereira/MyFAInance-v4-sub000/src/utils"
)

// statusFor maps a domain error to its HTTP status. Anything unknown is a
// failure of the holdings backend.
func statusFor(err error) int {
	var (
		invalid   *tags.ValidationError
		notFound  *tags.NotFoundError
		forbidden *tags.ForbiddenError
		conflict  *tags.ConflictError
		inFlight  *refresh.JobInFlightError
	)
	switch {
	case errors.As(err, &invalid), errors.Is(err, validation.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.Is(err, engine.ErrHoldingNotFound),
		errors.Is(err, services.ErrTagNotFound), errors.Is(err, services.ErrHoldingNotFound):
		return http.StatusNotFound
	case errors.As(err, &forbidden), errors.Is(err, services.ErrTagProtected):
		return http.StatusForbidden
	case errors.As(err, &conflict), errors.As(err, &inFlight), errors.Is(err, services.ErrTagExists):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// sendError answers with the mapped status. Backend failures are logged and
// reported with fallback instead of the raw error.
func sendError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusBadGateway {
		logger.FromContext(r.Context()).Error(fallback, "path", r.URL.Path, "error", err)
		utils.SendJSONError(w, fallback, status)
		return
	}
	utils.SendJSONError(w, err.Error(), status)
}
