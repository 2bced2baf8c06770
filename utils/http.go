package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
)

// ErrorResponse is the body of every error reply
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps the payload of a successful reply
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

var errTrailingData = errors.New("request body must hold a single JSON value")

// WriteJSON writes data with the given status. A nil data writes no body.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}
	return json.NewEncoder(w).Encode(data)
}

func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, SuccessResponse{Data: data})
}

func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// writeError sends the error envelope, using fallback when message is empty
func writeError(w http.ResponseWriter, status int, code, message, fallback string, details map[string]interface{}) error {
	if message == "" {
		message = fallback
	}
	return WriteJSON(w, status, ErrorResponse{Error: code, Message: message, Details: details})
}

// WriteBadRequest rejects a request; details usually maps field names to problems
func WriteBadRequest(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return writeError(w, http.StatusBadRequest, "bad_request", message, "Invalid request", details)
}

func WriteUnauthorized(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusUnauthorized, "unauthorized", message, "Authentication required", nil)
}

func WriteForbidden(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusForbidden, "forbidden", message, "Access forbidden", nil)
}

func WriteNotFound(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusNotFound, "not_found", message, "Resource not found", nil)
}

func WriteConflict(w http.ResponseWriter, message string, details map[string]interface{}) error {
	return writeError(w, http.StatusConflict, "conflict", message, "Resource already exists", details)
}

// WriteServiceUnavailable answers 503. A positive retryAfter is sent as the
// Retry-After header in seconds.
func WriteServiceUnavailable(w http.ResponseWriter, message string, retryAfter int) error {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	return writeError(w, http.StatusServiceUnavailable, "unavailable", message, "Service temporarily unavailable", nil)
}

func WriteInternalServerError(w http.ResponseWriter, message string) error {
	return writeError(w, http.StatusInternalServerError, "internal_error", message, "Internal server error", nil)
}

// DecodeJSON decodes one JSON value from the request body into dst.
// Unknown fields and trailing data are errors.
func DecodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if dec.More() {
		return errTrailingData
	}
	return nil
}
