// Package apperror holds the error taxonomy shared by the pipeline and the
// HTTP layer. Each AppError carries the status code the boundary responds
// with and a message that is safe to show to callers.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error types. Callers should switch on Code, not on Message.
const (
	TypeMissingParameter = "missing_parameter"
	TypeInvalidDate      = "invalid_date"
	TypeFetch            = "fetch_error"
	TypeConversion       = "conversion_error"
	TypeInternal         = "internal_error"
)

type AppError struct {
	Code    int    `json:"-"`
	Type    string `json:"type"`
	Message string `json:"message"`

	// Internal is logged, never written to a response.
	Internal error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// NewMissingParameter creates a 400 for an absent query parameter.
func NewMissingParameter(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Type:    TypeMissingParameter,
		Message: message,
	}
}

// NewInvalidDate creates a 400 for a date parameter that does not parse.
func NewInvalidDate(message string) *AppError {
	return &AppError{
		Code:    http.StatusBadRequest,
		Type:    TypeInvalidDate,
		Message: message,
	}
}

// NewFetch creates a 400 for an upstream calendar failure. The upstream
// message is kept since it is the only hint the caller gets.
func NewFetch(err error) *AppError {
	return &AppError{
		Code:     http.StatusBadRequest,
		Type:     TypeFetch,
		Message:  err.Error(),
		Internal: err,
	}
}

// NewConversion creates a 500 for a rasterizer failure.
func NewConversion(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     TypeConversion,
		Message:  err.Error(),
		Internal: err,
	}
}

// NewInternal creates a 500 whose cause is hidden from the client.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     TypeInternal,
		Message:  "an unexpected error occurred",
		Internal: err,
	}
}

// SafeMessage returns the client-safe message of err.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeCode returns the status code of err, or 500 for foreign errors.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// IsType reports whether err is an AppError of the given type.
func IsType(err error, typ string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == typ
}
