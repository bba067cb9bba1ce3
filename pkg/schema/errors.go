package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation  = "VALIDATION_ERROR"
	ErrCodeNotFound    = "NOT_FOUND"
	ErrCodeConflict    = "CONFLICT"
	ErrCodeCatalogMiss = "CATALOG_MISS"
	ErrCodeDataShape   = "DATA_SHAPE"
	ErrCodeStore       = "STORE_ERROR"
	ErrCodeExport      = "EXPORT_ERROR"
	ErrCodeExpression  = "EXPRESSION_ERROR"
	ErrCodeCancelled   = "CANCELLED"
)

// Error is the structured error type returned by station operations.
type Error struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	StationID string         `json:"station_id,omitempty"`
	Cause     error          `json:"-"`
}

func (e *Error) Error() string {
	if e.StationID != "" {
		return fmt.Sprintf("[%s] station %s: %s", e.Code, e.StationID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewErrorf creates a new Error with a formatted message.
func NewErrorf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithStation attaches a station ID to the error.
func (e *Error) WithStation(id string) *Error {
	e.StationID = id
	return e
}

// WithCause attaches an underlying cause.
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *Error) WithDetails(details map[string]any) *Error {
	e.Details = details
	return e
}

// HasCode reports whether err (or anything it wraps) is an *Error with the given code.
func HasCode(err error, code string) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
