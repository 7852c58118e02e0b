// Package apperror provides structured error handling for the client engine.
// All errors surfaced to the user or logged must use AppError for consistent
// classification and notification text.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes, grouped by recovery strategy.
const (
	// Terminal: session cleared, host forces a reload.
	CodeUnauthorized = "UNAUTHORIZED"

	// Schema fetch returned an {error} payload; page renders "not available".
	CodeSchemaUnavailable = "SCHEMA_UNAVAILABLE"

	// Recovered locally via notification.
	CodeValidation = "VALIDATION_ERROR"
	CodeTransport  = "TRANSPORT_ERROR"
	CodeDecode     = "DECODE_ERROR"
	CodeNotFound   = "NOT_FOUND"

	// Guarded pre-flight failures; no request is issued.
	CodeMissingIdentifier = "MISSING_IDENTIFIER"
)

// AppError is the standard error type for the engine.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (entity, field, status, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the status of the response that produced this error,
	// zero when the error never reached the wire.
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// --- Factory functions for common errors ---

// NewUnauthorized creates the terminal authentication error (401).
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewSchemaUnavailable creates the error for a schema fetch that returned an
// {error} payload. The page shell renders a "not available" state from it.
func NewSchemaUnavailable(entity, detail string) *AppError {
	return &AppError{
		Code:       CodeSchemaUnavailable,
		Message:    fmt.Sprintf("page for %s is not available", entity),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"entity": entity, "error": detail},
	}
}

// NewValidation creates a validation/business error recovered locally.
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewTransport creates a network-level failure (request never completed).
func NewTransport(err error) *AppError {
	return &AppError{
		Code:    CodeTransport,
		Message: "request failed",
		Err:     err,
	}
}

// NewDecode creates an error for an unparseable response body.
func NewDecode(err error) *AppError {
	return &AppError{
		Code:    CodeDecode,
		Message: "invalid response payload",
		Err:     err,
	}
}

// NewMissingIdentifier creates the guarded failure for a row-scoped action
// invoked without a row identifier. No request is issued.
func NewMissingIdentifier(label string) *AppError {
	return &AppError{
		Code:    CodeMissingIdentifier,
		Message: fmt.Sprintf("%s requires a selected row", label),
		Details: map[string]any{"action": label},
	}
}

// NewHTTP wraps a non-2xx response using the server-provided detail when
// present, else the HTTP status text. 404 keeps its own code so callers can
// distinguish a missing record from a rejected one.
func NewHTTP(status int, serverMessage string) *AppError {
	msg := serverMessage
	if msg == "" {
		msg = http.StatusText(status)
	}
	code := CodeValidation
	if status == http.StatusNotFound {
		code = CodeNotFound
	}
	return &AppError{
		Code:       code,
		Message:    msg,
		HTTPStatus: status,
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsUnauthorized checks if error is CodeUnauthorized
func IsUnauthorized(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeUnauthorized
	}
	return false
}

// IsSchemaUnavailable checks if error is CodeSchemaUnavailable
func IsSchemaUnavailable(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeSchemaUnavailable
	}
	return false
}

// UserMessage returns the text to surface in a notification for any error.
func UserMessage(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Message
	}
	return "operation failed"
}
