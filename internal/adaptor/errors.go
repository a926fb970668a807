package adaptor

import (
	"errors"
	"net/http"

	"agro-booking/internal/data/entity"
	"agro-booking/internal/usecase"
	"agro-booking/pkg/utils"

	"go.uber.org/zap"
)

// handleServiceError maps service errors to responses by kind. Anything outside
// the taxonomy is an internal error and its detail is only logged.
func handleServiceError(w http.ResponseWriter, log *zap.Logger, err error, operation string) {
	var appErr *usecase.AppError
	if !errors.As(err, &appErr) {
		log.Error(operation+" failed",
			zap.Error(err),
			zap.String("operation", operation))
		utils.ResponseInternalError(w, "Internal server error")
		return
	}

	fields := []zap.Field{
		zap.Error(err),
		zap.String("operation", operation),
		zap.String("code", appErr.Code),
	}

	var details any
	if len(appErr.Fields) > 0 {
		details = appErr.Fields
	}

	switch appErr.Kind {
	case usecase.KindValidation, usecase.KindAvailability, usecase.KindSignature:
		log.Warn(operation+" rejected", fields...)
		utils.ResponseBadRequest(w, appErr.Message, details)

	case usecase.KindNotFound:
		log.Warn(operation+" failed - not found", fields...)
		utils.ResponseNotFound(w, appErr.Message)

	case usecase.KindAccessDenied:
		log.Warn(operation+" failed - access denied", fields...)
		utils.ResponseForbidden(w, appErr.Message)

	case usecase.KindConflict:
		log.Warn(operation+" failed - invalid state", fields...)
		utils.ResponseConflict(w, appErr.Message, details)

	case usecase.KindTransient:
		log.Error(operation+" failed - dependency unavailable", fields...)
		utils.ResponseServiceUnavailable(w, appErr.Message)

	default:
		log.Error(operation+" failed", fields...)
		utils.ResponseInternalError(w, "Internal server error")
	}
}

// callerFrom writes 401 and returns false when the request is unauthenticated.
func callerFrom(w http.ResponseWriter, r *http.Request) (caller entity.Caller, ok bool) {
	caller, ok = utils.GetCallerFromContext(r.Context())
	if !ok {
		utils.ResponseUnauthorized(w, "Authentication required")
	}
	return caller, ok
}
