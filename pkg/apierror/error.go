package apierror

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ChrisHK/label-printer/internal/model"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`
	Details    any    `json:"details,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// WithDetails attaches details to the error body.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// ToJSON converts the error to JSON bytes.
func (e *Error) ToJSON() []byte {
	body := map[string]any{
		"success": false,
		"error":   e.Message,
	}
	if e.Details != nil {
		body["details"] = e.Details
	}

	data, _ := json.Marshal(body)
	return data
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return &Error{
		StatusCode: http.StatusBadRequest,
		Message:    message,
	}
}

// ValidationError creates a 400 error with field details.
func ValidationError(message string, details ...FieldError) *Error {
	e := BadRequest(message)
	if len(details) > 0 {
		e.Details = details
	}
	return e
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	if message == "" {
		message = "Authentication required"
	}
	return &Error{
		StatusCode: http.StatusUnauthorized,
		Message:    message,
	}
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	if message == "" {
		message = "Resource not found"
	}
	return &Error{
		StatusCode: http.StatusNotFound,
		Message:    message,
	}
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return &Error{
		StatusCode: http.StatusInternalServerError,
		Message:    message,
	}
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	if message == "" {
		message = "Service temporarily unavailable"
	}
	return &Error{
		StatusCode: http.StatusServiceUnavailable,
		Message:    message,
	}
}

// FromError maps a domain error to an API error. Validation failures become
// 400 and missing resources 404; anything else is a 500 whose details carry
// the original message.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var ve *model.ValidationError
	switch {
	case errors.As(err, &ve):
		return BadRequest(ve.Message)
	case errors.Is(err, model.ErrNotFound):
		return NotFound("")
	default:
		return InternalError("").WithDetails(err.Error())
	}
}
