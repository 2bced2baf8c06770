package services

import (
	"errors"
	"fmt"

	"github.com/upb/hms-audit/repositories"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeContention   ErrorType = "contention"
	ErrorTypeUnavailable  ErrorType = "unavailable"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type and message, so a wrapped
// sentinel still matches the sentinel itself.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Message == t.Message
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// Wrap returns a copy of the sentinel carrying cause
func (e *DomainError) Wrap(cause error) *DomainError {
	details := make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		details[k] = v
	}
	return &DomainError{Type: e.Type, Message: e.Message, Err: cause, Details: details}
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Not Found Errors
	ErrEntityNotFound = NewDomainError(ErrorTypeNotFound, "entity not found", nil)
	ErrAlertNotFound  = NewDomainError(ErrorTypeNotFound, "notification not found", nil)

	// Validation Errors
	ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrUnknownTable = NewDomainError(ErrorTypeValidation, "unknown table", nil)
	ErrInvalidLimit = NewDomainError(ErrorTypeValidation, "limit must be positive", nil)

	// Authorization Errors
	ErrUnauthorized = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidToken = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)
	ErrTokenExpired = NewDomainError(ErrorTypeUnauthorized, "authentication token expired", nil)

	// Conflict Errors
	ErrDuplicateEntity = NewDomainError(ErrorTypeConflict, "entity already exists", nil)
	ErrCycleInProgress = NewDomainError(ErrorTypeConflict, "alert cycle already running", nil)

	// Contention Errors
	ErrLockTimeout = NewDomainError(ErrorTypeContention, "lock wait timed out", nil)

	// Unavailable Errors
	ErrStoreUnavailable = NewDomainError(ErrorTypeUnavailable, "store unavailable", nil)

	// Internal Errors
	ErrInternal      = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrCaptureFailed = NewDomainError(ErrorTypeInternal, "audit capture failed", nil)
)

// FromStore translates a repository error into a domain error. notFound is
// the sentinel to use when the record is missing.
func FromStore(err error, notFound *DomainError) error {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return notFound.Wrap(err)
	case errors.Is(err, repositories.ErrDuplicate):
		return ErrDuplicateEntity.Wrap(err)
	case errors.Is(err, repositories.ErrMalformed):
		return ErrInvalidInput.Wrap(err)
	case errors.Is(err, repositories.ErrLockTimeout):
		return ErrLockTimeout.Wrap(err)
	case errors.Is(err, repositories.ErrAuditAppend):
		return ErrCaptureFailed.Wrap(err)
	case errors.Is(err, repositories.ErrTransactionLost):
		return ErrStoreUnavailable.Wrap(err)
	}
	return WrapInternal("store operation failed", err)
}

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return GetErrorType(err) == ErrorTypeConflict
}

// IsContentionError checks if an error is a lock contention error
func IsContentionError(err error) bool {
	return GetErrorType(err) == ErrorTypeContention
}

// IsUnavailableError checks if an error means the store could not be reached
func IsUnavailableError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnavailable
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// GetErrorMessage returns the message of a domain error without its
// cause, or empty string if not a domain error
func GetErrorMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
