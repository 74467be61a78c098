// Package apperror defines the typed error taxonomy returned by the store.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents an application error with HTTP status and error code.
type Error struct {
	HTTPStatus int
	Code       string
	Message    string
	Internal   error
	Details    map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the internal error.
func (e *Error) Unwrap() error {
	return e.Internal
}

// WithInternal returns a copy of the error with an internal error attached.
func (e *Error) WithInternal(err error) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Internal:   err,
		Details:    e.Details,
	}
}

// WithMessage returns a copy of the error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    message,
		Internal:   e.Internal,
		Details:    e.Details,
	}
}

// WithDetails returns a copy of the error with details attached. Details carry
// the triggering operation and offending field/id so calling services can
// render actionable messages.
func (e *Error) WithDetails(details map[string]any) *Error {
	return &Error{
		HTTPStatus: e.HTTPStatus,
		Code:       e.Code,
		Message:    e.Message,
		Internal:   e.Internal,
		Details:    details,
	}
}

// WithOperation returns a copy of the error annotated with the operation name.
func (e *Error) WithOperation(operation string) *Error {
	details := map[string]any{"operation": operation}
	for k, v := range e.Details {
		details[k] = v
	}
	return e.WithDetails(details)
}

// New creates a new application error.
func New(status int, code, message string) *Error {
	return &Error{
		HTTPStatus: status,
		Code:       code,
		Message:    message,
	}
}

// Sentinel errors covering the store's error taxonomy.
var (
	ErrUnauthorized = New(http.StatusUnauthorized, "unauthorized", "Authentication required")
	ErrInvalidToken = New(http.StatusUnauthorized, "invalid_token", "Invalid or expired token")
	ErrForbidden    = New(http.StatusForbidden, "forbidden", "Access denied")

	ErrNotFound = New(http.StatusNotFound, "not_found", "Resource not found")
	ErrConflict = New(http.StatusConflict, "conflict", "Resource version conflict")

	ErrBadRequest           = New(http.StatusBadRequest, "bad_request", "Invalid request")
	ErrValidation           = New(http.StatusUnprocessableEntity, "validation_error", "Validation failed")
	ErrInvalidSequence      = New(http.StatusUnprocessableEntity, "invalid_sequence", "Ordering is not a valid permutation")
	ErrCycleDetected        = New(http.StatusUnprocessableEntity, "cycle_detected", "Parent assignment would create a cycle")
	ErrUnsupportedOperation = New(http.StatusUnprocessableEntity, "unsupported_operation", "Operation is not registered")
	ErrRateLimited          = New(http.StatusTooManyRequests, "rate_limited", "Tenant quota exceeded")

	ErrInternal = New(http.StatusInternalServerError, "internal_error", "An internal error occurred")
	ErrDatabase = New(http.StatusInternalServerError, "database_error", "Database operation failed")
)

// NewNotFound creates a not found error for a resource type and ID.
func NewNotFound(resourceType, id string) *Error {
	return ErrNotFound.
		WithMessage(fmt.Sprintf("%s '%s' not found", resourceType, id)).
		WithDetails(map[string]any{"resource": resourceType, "id": id})
}

// NewValidation creates a validation error pointing at a specific field.
func NewValidation(field, message string) *Error {
	return ErrValidation.
		WithMessage(message).
		WithDetails(map[string]any{"field": field})
}

// NewForbidden creates a forbidden error naming the denied action and resource.
func NewForbidden(action, resourceType string) *Error {
	return ErrForbidden.
		WithMessage(fmt.Sprintf("not allowed to %s %s", action, resourceType)).
		WithDetails(map[string]any{"action": action, "resource": resourceType})
}

// NewInternal creates an internal error with a message and optional wrapped error.
func NewInternal(message string, err error) *Error {
	return &Error{
		HTTPStatus: http.StatusInternalServerError,
		Code:       "internal_error",
		Message:    message,
		Internal:   err,
	}
}

// IsCode reports whether err is an *Error carrying the given code.
func IsCode(err error, code string) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsRetryable reports whether err is a transient infrastructure error that may
// be retried internally. Typed application errors are never retryable.
func IsRetryable(err error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == "database_error" && appErr.Internal != nil
	}
	return false
}
