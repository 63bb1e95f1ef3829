package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the module.
type ErrorCode string

// Backend error codes. Transient codes carry Retryable=true when built
// through Transient; everything else is fatal from the caller's view.
const (
	ErrInvalidRequest  ErrorCode = "INVALID_REQUEST"
	ErrUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrForbidden       ErrorCode = "FORBIDDEN"
	ErrContentFiltered ErrorCode = "CONTENT_FILTERED"
	ErrRateLimited     ErrorCode = "RATE_LIMITED"
	ErrUpstreamTimeout ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamError   ErrorCode = "UPSTREAM_ERROR"
	ErrRetryExhausted  ErrorCode = "RETRY_EXHAUSTED"
)

// Orchestration error codes.
const (
	ErrBudgetExceeded  ErrorCode = "BUDGET_EXCEEDED"
	ErrSessionTimeout  ErrorCode = "SESSION_TIMEOUT"
	ErrCacheCorruption ErrorCode = "CACHE_CORRUPTION"
	ErrStrategyUnknown ErrorCode = "STRATEGY_UNKNOWN"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Backend   string    `json:"backend,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Transient creates a retryable backend error.
func Transient(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Retryable: true}
}

// Fatal creates a non-retryable backend error.
func Fatal(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithBackend sets the backend name.
func (e *Error) WithBackend(backend string) *Error {
	e.Backend = backend
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsTransient reports whether err is a retryable backend fault.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// IsFatal reports whether err is a structured error that is not retryable.
func IsFatal(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return !e.Retryable
	}
	return false
}

// IsBudgetExceeded reports whether err marks step-budget exhaustion.
func IsBudgetExceeded(err error) bool {
	return GetErrorCode(err) == ErrBudgetExceeded
}

// IsTimeout reports whether err is a session wall-clock timeout.
func IsTimeout(err error) bool {
	return GetErrorCode(err) == ErrSessionTimeout
}

// IsCacheCorruption reports whether err marks an unreadable cache file.
func IsCacheCorruption(err error) bool {
	return GetErrorCode(err) == ErrCacheCorruption
}

// GetErrorCode extracts the error code from an error, unwrapping as needed.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
