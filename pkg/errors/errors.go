// Package errors defines custom error types and error handling utilities for the throttle service.
// Every error carries a stable code and the HTTP status it maps to; kinds are compared with errors.Is.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error code.
type Code string

const (
	CodeInternal          Code = "internal_error"
	CodeInvalidConfig     Code = "invalid_config"
	CodeUnknownLimiter    Code = "unknown_limiter"
	CodeLimiterInternal   Code = "limiter_internal"
	CodeRateLimitExceeded Code = "too_many_requests"
	CodeUnauthorized      Code = "unauthorized"
	CodeNotFound          Code = "not_found"
)

// ================================================================================
// AppError
// ================================================================================

// AppError represents a structured application error
type AppError struct {
	code       Code
	httpStatus int
	message    string
	cause      error
	metadata   map[string]interface{}
}

// New creates a new AppError.
func New(code Code, httpStatus int, message string) *AppError {
	return &AppError{code: code, httpStatus: httpStatus, message: message}
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code
func (e *AppError) Code() Code {
	return e.code
}

// HTTPStatus returns the HTTP status code
func (e *AppError) HTTPStatus() int {
	return e.httpStatus
}

// Message returns the message without the cause chain
func (e *AppError) Message() string {
	return e.message
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is reports whether target is an AppError of the same code.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !stderrors.As(target, &t) {
		return false
	}
	return t.code == e.code
}

// Metadata returns all metadata
func (e *AppError) Metadata() map[string]interface{} {
	return e.metadata
}

// WithCause returns a copy of the error carrying cause.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.cause = cause
	return &cp
}

// WithMessage returns a copy of the error with a more specific message.
func (e *AppError) WithMessage(format string, args ...interface{}) *AppError {
	cp := *e
	cp.message = fmt.Sprintf(format, args...)
	return &cp
}

// WithMetadata returns a copy of the error with an extra metadata entry.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	cp := *e
	cp.metadata = make(map[string]interface{}, len(e.metadata)+1)
	for k, v := range e.metadata {
		cp.metadata[k] = v
	}
	cp.metadata[key] = value
	return &cp
}

// ================================================================================
// Error Kinds
// ================================================================================

var (
	// ErrInternalServer is returned for unexpected failures in handlers
	ErrInternalServer = New(CodeInternal, http.StatusInternalServerError, "internal server error")

	// ErrInvalidConfig is returned when configuration fails validation at startup
	ErrInvalidConfig = New(CodeInvalidConfig, http.StatusInternalServerError, "invalid configuration")

	// ErrUnknownLimiter is returned when a named limiter does not exist.
	// It is a programming error at the call site and is never substituted.
	ErrUnknownLimiter = New(CodeUnknownLimiter, http.StatusInternalServerError, "unknown rate limiter")

	// ErrLimiterInternal marks faults inside limiter bookkeeping (store failures,
	// malformed store replies). The limiter recovers these by failing open.
	ErrLimiterInternal = New(CodeLimiterInternal, http.StatusInternalServerError, "rate limiter internal error")

	// ErrRateLimitExceeded is the HTTP representation of a rejected check
	ErrRateLimitExceeded = New(CodeRateLimitExceeded, http.StatusTooManyRequests, "too many requests, please try again later")

	// ErrUnauthorized is returned for missing or invalid credentials
	ErrUnauthorized = New(CodeUnauthorized, http.StatusUnauthorized, "unauthorized")

	// ErrNotFound is returned for unknown routes
	ErrNotFound = New(CodeNotFound, http.StatusNotFound, "the requested resource was not found")
)

// Internal wraps err as an ErrLimiterInternal with a message describing the failed step.
func Internal(err error, step string) *AppError {
	return ErrLimiterInternal.WithMessage("rate limiter %s failed", step).WithCause(err)
}

// IsLimiterInternal reports whether err is a limiter bookkeeping fault.
func IsLimiterInternal(err error) bool {
	return stderrors.Is(err, ErrLimiterInternal)
}

// As re-exports errors.As so callers need a single import.
func As(err error, target interface{}) bool {
	return stderrors.As(err, target)
}

// Is re-exports errors.Is so callers need a single import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// HTTPStatus returns the HTTP status associated with err, defaulting to 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.httpStatus
	}
	return http.StatusInternalServerError
}
