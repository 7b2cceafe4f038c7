package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the pipeline.
type ErrorCode string

const (
	ErrBackendUnavailable ErrorCode = "BACKEND_UNAVAILABLE"
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrConfigInvalid      ErrorCode = "CONFIG_INVALID"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrPipelineClosed     ErrorCode = "PIPELINE_CLOSED"
)

// Error represents a structured error with code, message, and cause.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Component string    `json:"component,omitempty"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Component != "" {
		msg = e.Component + ": " + msg
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, msg, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, msg)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithComponent sets the originating component name.
func (e *Error) WithComponent(component string) *Error {
	e.Component = component
	return e
}

// BackendError wraps a backend failure as a retryable BACKEND_UNAVAILABLE error.
func BackendError(cause error) *Error {
	return NewError(ErrBackendUnavailable, "embedding backend failed").
		WithRetryable(true).
		WithCause(cause)
}

// StorageError wraps a cache-tier storage failure as STORAGE_UNAVAILABLE.
func StorageError(tier string, cause error) *Error {
	return NewError(ErrStorageUnavailable, "cache storage failed").
		WithComponent(tier).
		WithRetryable(true).
		WithCause(cause)
}

// ConfigError reports an invalid configuration value. Never retryable:
// construction fails fast instead of clamping.
func ConfigError(message string) *Error {
	return NewError(ErrConfigInvalid, message)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
