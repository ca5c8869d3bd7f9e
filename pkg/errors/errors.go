package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind groups error codes by how a caller should react to them
type Kind string

const (
	// KindValidation means the input itself is malformed or violates a policy invariant
	KindValidation Kind = "validation"
	// KindStateConflict means the input is fine but the target is in the wrong lifecycle state
	KindStateConflict Kind = "state_conflict"
	// KindAuthorization means the caller lacks the required relationship to the resource
	KindAuthorization Kind = "authorization"
	KindNotFound      Kind = "not_found"
	// KindExternal means a collaborator outside this service failed; the operation is retryable
	KindExternal Kind = "external"
	KindInternal Kind = "internal"
)

// AppError represents an application-level error with HTTP status code
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Kind       Kind   `json:"-"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches any AppError carrying the same code, so predefined errors work with errors.Is
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithDetail returns a copy of e with the given detail
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithDetailf returns a copy of e with a formatted detail
func (e *AppError) WithDetailf(format string, args ...any) *AppError {
	return e.WithDetail(fmt.Sprintf(format, args...))
}

// Common error codes
const (
	ErrCodeUnauthorized  = "unauthorized"
	ErrCodeForbidden     = "forbidden"
	ErrCodeNotFound      = "not_found"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeConflict      = "conflict"
	ErrCodeInternalError = "internal_error"
	ErrCodeRateLimited   = "rate_limited"

	// Wallet configuration
	ErrCodeInvalidConfiguration = "invalid_configuration"
	ErrCodeWalletSuspended      = "wallet_suspended"

	// Signer registry
	ErrCodeCapacityExceeded  = "capacity_exceeded"
	ErrCodeDuplicateSigner   = "duplicate_signer"
	ErrCodeQuorumUnreachable = "quorum_unreachable"

	// Signature submission
	ErrCodeNotAnAuthorizedSigner = "not_an_authorized_signer"
	ErrCodeDuplicateSignature    = "duplicate_signature"
	ErrCodePublicKeyMismatch     = "public_key_mismatch"
	ErrCodeInvalidSignature      = "invalid_signature"

	// Request state machine
	ErrCodeRequestNotPending = "request_not_pending"
	ErrCodeRequestExpired    = "request_expired"
	ErrCodeQuorumNotReached  = "quorum_not_reached"
	ErrCodeAlreadyBroadcast  = "already_broadcast"

	// External collaborators
	ErrCodeBroadcastFailed   = "broadcast_failed"
	ErrCodeChainNotSupported = "chain_not_supported"
)

// Predefined errors
var (
	ErrUnauthorized = &AppError{
		Code:       ErrCodeUnauthorized,
		Message:    "Authentication required",
		Kind:       KindAuthorization,
		StatusCode: http.StatusUnauthorized,
	}

	ErrForbidden = &AppError{
		Code:       ErrCodeForbidden,
		Message:    "Access denied",
		Kind:       KindAuthorization,
		StatusCode: http.StatusForbidden,
	}

	ErrNotFound = &AppError{
		Code:       ErrCodeNotFound,
		Message:    "Resource not found",
		Kind:       KindNotFound,
		StatusCode: http.StatusNotFound,
	}

	ErrBadRequest = &AppError{
		Code:       ErrCodeBadRequest,
		Message:    "Invalid request parameters",
		Kind:       KindValidation,
		StatusCode: http.StatusBadRequest,
	}

	ErrInternalError = &AppError{
		Code:       ErrCodeInternalError,
		Message:    "Internal server error",
		Kind:       KindInternal,
		StatusCode: http.StatusInternalServerError,
	}

	ErrConflict = &AppError{
		Code:       ErrCodeConflict,
		Message:    "Request conflict",
		Kind:       KindStateConflict,
		StatusCode: http.StatusConflict,
	}

	ErrInvalidConfiguration = validation(ErrCodeInvalidConfiguration, "Invalid wallet configuration")

	ErrWalletSuspended = conflict(ErrCodeWalletSuspended, "Wallet is suspended")

	ErrCapacityExceeded  = conflict(ErrCodeCapacityExceeded, "Wallet already has the maximum number of active signers")
	ErrDuplicateSigner   = conflict(ErrCodeDuplicateSigner, "Signer is already registered on this wallet")
	ErrQuorumUnreachable = conflict(ErrCodeQuorumUnreachable, "Removing this signer would make quorum unreachable")

	ErrNotAnAuthorizedSigner = &AppError{
		Code:       ErrCodeNotAnAuthorizedSigner,
		Message:    "Caller is not an active signer on this wallet",
		Kind:       KindAuthorization,
		StatusCode: http.StatusForbidden,
	}
	ErrDuplicateSignature = conflict(ErrCodeDuplicateSignature, "Signer has already voted on this request")
	ErrPublicKeyMismatch  = validation(ErrCodePublicKeyMismatch, "Public key does not match the registered signer key")
	ErrInvalidSignature   = validation(ErrCodeInvalidSignature, "Signature does not verify against the request payload")

	ErrRequestNotPending = conflict(ErrCodeRequestNotPending, "Approval request is not pending")
	ErrRequestExpired    = conflict(ErrCodeRequestExpired, "Approval request has expired")
	ErrQuorumNotReached  = conflict(ErrCodeQuorumNotReached, "Approval request has not reached quorum")
	ErrAlreadyBroadcast  = conflict(ErrCodeAlreadyBroadcast, "Transaction has already been broadcast")

	ErrBroadcastFailed = &AppError{
		Code:       ErrCodeBroadcastFailed,
		Message:    "Transaction broadcast failed",
		Kind:       KindExternal,
		StatusCode: http.StatusBadGateway,
	}
	ErrChainNotSupported = validation(ErrCodeChainNotSupported, "Chain is not supported")
)

func validation(code, message string) *AppError {
	return &AppError{Code: code, Message: message, Kind: KindValidation, StatusCode: http.StatusUnprocessableEntity}
}

func conflict(code, message string) *AppError {
	return &AppError{Code: code, Message: message, Kind: KindStateConflict, StatusCode: http.StatusConflict}
}

// New creates a new AppError
func New(code, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Kind:       kindForStatus(statusCode),
		StatusCode: statusCode,
	}
}

// NewWithDetail creates a new AppError with additional detail
func NewWithDetail(code, message, detail string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Detail:     detail,
		Kind:       kindForStatus(statusCode),
		StatusCode: statusCode,
	}
}

// InvalidConfiguration creates an invalid configuration error with a reason
func InvalidConfiguration(reason string) *AppError {
	return ErrInvalidConfiguration.WithDetail(reason)
}

// BroadcastFailed wraps a broadcaster error; the request stays approved and may be retried
func BroadcastFailed(cause error) *AppError {
	return ErrBroadcastFailed.WithDetail(cause.Error())
}

// NotFound creates a not found error for the given resource
func NotFound(resource, id string) *AppError {
	return &AppError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Detail:     fmt.Sprintf("id: %s", id),
		Kind:       KindNotFound,
		StatusCode: http.StatusNotFound,
	}
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError with the given code
func HasCode(err error, code string) bool {
	appErr, ok := IsAppError(err)
	return ok && appErr.Code == code
}

// KindOf returns the error kind, treating non-AppErrors as internal
func KindOf(err error) Kind {
	if appErr, ok := IsAppError(err); ok {
		return appErr.Kind
	}
	return KindInternal
}

func kindForStatus(statusCode int) Kind {
	switch {
	case statusCode == http.StatusNotFound:
		return KindNotFound
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return KindAuthorization
	case statusCode == http.StatusConflict:
		return KindStateConflict
	case statusCode == http.StatusBadGateway:
		return KindExternal
	case statusCode >= 500:
		return KindInternal
	default:
		return KindValidation
	}
}
