package apperror

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelCodes(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
		code   string
	}{
		{ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{ErrInvalidToken, http.StatusUnauthorized, "invalid_token"},
		{ErrForbidden, http.StatusForbidden, "forbidden"},
		{ErrNotFound, http.StatusNotFound, "not_found"},
		{ErrConflict, http.StatusConflict, "conflict"},
		{ErrBadRequest, http.StatusBadRequest, "bad_request"},
		{ErrValidation, http.StatusUnprocessableEntity, "validation_error"},
		{ErrInvalidSequence, http.StatusUnprocessableEntity, "invalid_sequence"},
		{ErrCycleDetected, http.StatusUnprocessableEntity, "cycle_detected"},
		{ErrUnsupportedOperation, http.StatusUnprocessableEntity, "unsupported_operation"},
		{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
		{ErrInternal, http.StatusInternalServerError, "internal_error"},
		{ErrDatabase, http.StatusInternalServerError, "database_error"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
}

func TestWithHelpersDoNotMutateSentinel(t *testing.T) {
	inner := errors.New("connection refused")
	err := ErrDatabase.WithMessage("insert failed").WithInternal(inner).WithOperation("thing.create")

	assert.Equal(t, "Database operation failed", ErrDatabase.Message)
	assert.Nil(t, ErrDatabase.Internal)
	assert.Nil(t, ErrDatabase.Details)

	assert.Equal(t, "insert failed", err.Message)
	assert.Equal(t, inner, err.Internal)
	assert.Equal(t, "thing.create", err.Details["operation"])
}

func TestErrorStringAndUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := ErrConflict.WithInternal(inner)

	assert.Contains(t, err.Error(), "conflict")
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, inner, errors.Unwrap(err))
	assert.True(t, errors.Is(err, inner))
}

func TestIsCode(t *testing.T) {
	err := NewValidation("name", "name is required")
	assert.True(t, IsCode(err, "validation_error"))
	assert.False(t, IsCode(err, "conflict"))
	assert.False(t, IsCode(errors.New("plain"), "validation_error"))
	assert.False(t, IsCode(nil, "validation_error"))

	// Wrapped errors still match.
	wrapped := NewInternal("wrapper", err)
	assert.True(t, IsCode(wrapped, "internal_error"))
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("thing", "abc-123")
	require.Equal(t, http.StatusNotFound, err.HTTPStatus)
	assert.Equal(t, "thing 'abc-123' not found", err.Message)
	assert.Equal(t, "thing", err.Details["resource"])
	assert.Equal(t, "abc-123", err.Details["id"])
}

func TestNewForbidden(t *testing.T) {
	err := NewForbidden("update", "group")
	require.Equal(t, http.StatusForbidden, err.HTTPStatus)
	assert.Equal(t, "not allowed to update group", err.Message)
	assert.Equal(t, "update", err.Details["action"])
	assert.Equal(t, "group", err.Details["resource"])
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrDatabase.WithInternal(errors.New("connection reset"))))
	assert.False(t, IsRetryable(ErrDatabase), "no internal cause means not transient")
	assert.False(t, IsRetryable(ErrValidation))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}
