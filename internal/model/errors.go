package model

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a batch or log does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports malformed input. Nothing has been written when it is returned.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError formats a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ItemProcessingError is a failure confined to one item of a batch.
type ItemProcessingError struct {
	SerialNumber string
	Message      string
}

func (e *ItemProcessingError) Error() string {
	if e.SerialNumber == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.SerialNumber, e.Message)
}

// TransactionError aborts a whole batch.
type TransactionError struct {
	BatchID string
	Err     error
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("batch %s: %v", e.BatchID, e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// StoreError wraps a persistence failure with the operation that caused it.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFound reports whether err is (or wraps) ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
