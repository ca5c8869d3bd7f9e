package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name: "error without detail",
			err: &AppError{
				Code:    ErrCodeUnauthorized,
				Message: "Authentication required",
			},
			expected: "unauthorized: Authentication required",
		},
		{
			name: "error with detail",
			err: &AppError{
				Code:    ErrCodeInvalidConfiguration,
				Message: "Invalid wallet configuration",
				Detail:  "required_signatures must be at least 1",
			},
			expected: "invalid_configuration: Invalid wallet configuration (required_signatures must be at least 1)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestNew(t *testing.T) {
	err := New("test_code", "Test message", http.StatusTeapot)

	assert.Equal(t, "test_code", err.Code)
	assert.Equal(t, "Test message", err.Message)
	assert.Equal(t, http.StatusTeapot, err.StatusCode)
	assert.Equal(t, KindValidation, err.Kind)
	assert.Empty(t, err.Detail)
}

func TestNewWithDetail(t *testing.T) {
	err := NewWithDetail(
		"test_code",
		"Test message",
		"Additional details",
		http.StatusConflict,
	)

	assert.Equal(t, "Additional details", err.Detail)
	assert.Equal(t, http.StatusConflict, err.StatusCode)
	assert.Equal(t, KindStateConflict, err.Kind)
}

func TestWithDetailDoesNotMutatePredefined(t *testing.T) {
	err := ErrRequestExpired.WithDetailf("expired at %s", "2026-01-01")

	assert.Equal(t, "expired at 2026-01-01", err.Detail)
	assert.Empty(t, ErrRequestExpired.Detail)
	assert.True(t, errors.Is(err, ErrRequestExpired))
	assert.False(t, errors.Is(err, ErrRequestNotPending))
}

func TestBroadcastFailed(t *testing.T) {
	err := BroadcastFailed(fmt.Errorf("nonce too low"))

	assert.Equal(t, ErrCodeBroadcastFailed, err.Code)
	assert.Equal(t, "nonce too low", err.Detail)
	assert.Equal(t, KindExternal, err.Kind)
	assert.Equal(t, http.StatusBadGateway, err.StatusCode)
}

func TestNotFound(t *testing.T) {
	err := NotFound("Approval request", "abc")

	assert.Equal(t, ErrCodeNotFound, err.Code)
	assert.Equal(t, "Approval request not found", err.Message)
	assert.Contains(t, err.Detail, "abc")
	assert.Equal(t, KindNotFound, err.Kind)
}

func TestIsAppError(t *testing.T) {
	t.Run("returns AppError when error is AppError", func(t *testing.T) {
		originalErr := New("test", "test", http.StatusBadRequest)
		appErr, ok := IsAppError(originalErr)

		require.True(t, ok)
		assert.Equal(t, originalErr, appErr)
	})

	t.Run("returns false when error is not AppError", func(t *testing.T) {
		appErr, ok := IsAppError(errors.New("standard error"))

		assert.False(t, ok)
		assert.Nil(t, appErr)
	})

	t.Run("works with wrapped errors", func(t *testing.T) {
		wrappedErr := fmt.Errorf("wrapped: %w", ErrDuplicateSignature)

		assert.True(t, HasCode(wrappedErr, ErrCodeDuplicateSignature))
		assert.Equal(t, KindStateConflict, KindOf(wrappedErr))
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
		assert.False(t, HasCode(errors.New("boom"), ErrCodeNotFound))
	})
}

func TestTaxonomyKinds(t *testing.T) {
	tests := []struct {
		err        *AppError
		kind       Kind
		statusCode int
	}{
		{ErrInvalidConfiguration, KindValidation, http.StatusUnprocessableEntity},
		{ErrForbidden, KindAuthorization, http.StatusForbidden},
		{ErrWalletSuspended, KindStateConflict, http.StatusConflict},
		{ErrCapacityExceeded, KindStateConflict, http.StatusConflict},
		{ErrDuplicateSigner, KindStateConflict, http.StatusConflict},
		{ErrQuorumUnreachable, KindStateConflict, http.StatusConflict},
		{ErrNotAnAuthorizedSigner, KindAuthorization, http.StatusForbidden},
		{ErrDuplicateSignature, KindStateConflict, http.StatusConflict},
		{ErrPublicKeyMismatch, KindValidation, http.StatusUnprocessableEntity},
		{ErrInvalidSignature, KindValidation, http.StatusUnprocessableEntity},
		{ErrRequestNotPending, KindStateConflict, http.StatusConflict},
		{ErrRequestExpired, KindStateConflict, http.StatusConflict},
		{ErrQuorumNotReached, KindStateConflict, http.StatusConflict},
		{ErrAlreadyBroadcast, KindStateConflict, http.StatusConflict},
		{ErrBroadcastFailed, KindExternal, http.StatusBadGateway},
	}

	seen := make(map[string]bool)
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.statusCode, tt.err.StatusCode)
			assert.NotEmpty(t, tt.err.Message)
			assert.False(t, seen[tt.err.Code], "error code %s is duplicate", tt.err.Code)
			seen[tt.err.Code] = true
		})
	}
}
