package handlers

import (
	"net/http"

	"github.com/upb/hms-audit/services"
	"github.com/upb/hms-audit/utils"
	"go.uber.org/zap"
)

// contentionRetryAfter is the Retry-After hint, in seconds, sent when a
// write lost a lock wait
const contentionRetryAfter = 1

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)
	if len(details) == 0 {
		details = nil
	}
	message := publicMessage(err)

	var writeErr error
	switch {
	case services.IsNotFoundError(err):
		writeErr = utils.WriteNotFound(w, message)

	case services.IsValidationError(err):
		writeErr = utils.WriteBadRequest(w, message, details)

	case services.IsUnauthorizedError(err):
		writeErr = utils.WriteUnauthorized(w, message)

	case services.IsConflictError(err):
		writeErr = utils.WriteConflict(w, message, details)

	case services.IsContentionError(err):
		logger.Warn("request lost a lock wait", zap.Error(err))
		writeErr = utils.WriteServiceUnavailable(w, message, contentionRetryAfter)

	case services.IsUnavailableError(err):
		logger.Error("store unavailable", zap.Error(err))
		writeErr = utils.WriteServiceUnavailable(w, message, 0)

	case services.IsInternalError(err):
		// Log internal errors but return generic message
		logger.Error("internal server error", zap.Error(err))
		writeErr = utils.WriteInternalServerError(w, "An internal error occurred")

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		writeErr = utils.WriteInternalServerError(w, "An unexpected error occurred")
	}

	if writeErr != nil {
		logger.Error("failed to write error response", zap.Error(writeErr))
	}
}

// HandleValidationError handles validation errors from request parsing
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
		if err := utils.WriteBadRequest(w, "Validation failed", details); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// publicMessage is the domain message without the wrapped cause, so store
// internals do not leak to clients
func publicMessage(err error) string {
	if msg := services.GetErrorMessage(err); msg != "" {
		return msg
	}
	return err.Error()
}
