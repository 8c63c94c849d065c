// Package apperr defines the error taxonomy shared by the transcription
// pipeline and the HTTP layer. Every error carries a machine-readable code
// and the HTTP status it should be rendered with.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeTooLarge      Code = "PAYLOAD_TOO_LARGE"
	CodeConfiguration Code = "CONFIGURATION_ERROR"
	CodeProvider      Code = "PROVIDER_ERROR"
	CodeNormalization Code = "NORMALIZATION_ERROR"
	CodeStore         Code = "STORE_ERROR"
	CodeNotFound      Code = "NOT_FOUND"
	CodeInternal      Code = "INTERNAL_ERROR"
)

// Error is the unified application error.
type Error struct {
	Code       Code
	Message    string
	HTTPStatus int
	Details    map[string]any
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key and returns the receiver.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an Error with an explicit status.
func New(code Code, message string, httpStatus int) *Error {
	return &Error{Code: code, Message: message, HTTPStatus: httpStatus}
}

// Validation reports bad or missing client input.
func Validation(message string) *Error {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// TooLarge reports an upload over the configured size limit.
func TooLarge(size, limit int64) *Error {
	return New(CodeTooLarge, "too large", http.StatusRequestEntityTooLarge).
		WithDetail("size", size).
		WithDetail("limit", limit)
}

// Configuration reports missing credentials or settings.
func Configuration(message string) *Error {
	return New(CodeConfiguration, message, http.StatusInternalServerError)
}

// Provider reports a failure of an upstream speech API.
func Provider(provider, message string) *Error {
	return New(CodeProvider, message, http.StatusInternalServerError).
		WithDetail("provider", provider)
}

// ProviderStatus builds a provider error from a non-2xx upstream response.
// Well-known statuses get a stable message; everything else passes the
// upstream message through.
func ProviderStatus(provider string, status int, upstream string) *Error {
	msg := upstream
	switch status {
	case http.StatusUnauthorized:
		msg = "invalid credentials"
	case http.StatusRequestEntityTooLarge:
		msg = "file too large upstream"
	case http.StatusBadRequest:
		msg = "invalid audio format"
	}
	if msg == "" {
		msg = fmt.Sprintf("%s returned status %d", provider, status)
	}
	e := Provider(provider, msg).WithDetail("status", status)
	if upstream != "" {
		e.WithDetail("message", upstream)
	}
	return e
}

// Normalization reports a malformed provider payload.
func Normalization(provider, message string) *Error {
	return New(CodeNormalization, message, http.StatusInternalServerError).
		WithDetail("provider", provider)
}

// Store reports a persistence failure.
func Store(cause error) *Error {
	return New(CodeStore, "database operation failed", http.StatusInternalServerError).WithCause(cause)
}

// NotFound reports an absent resource.
func NotFound(resource, id string) *Error {
	e := New(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound)
	if id != "" {
		e.WithDetail("id", id)
	}
	return e
}

// Internal wraps an unexpected error.
func Internal(cause error) *Error {
	return New(CodeInternal, "an unexpected error occurred", http.StatusInternalServerError).WithCause(cause)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
