package errors

import (
	"errors"
	"fmt"
)

// Domain errors - these represent business rule violations
var (
	// Authentication
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Tally validation
	ErrValidation      = errors.New("validation failed")
	ErrInvalidDate     = errors.New("date must be formatted as YYYY-MM-DD")

	// Store
	ErrStoreUnavailable = errors.New("tabular store unavailable")
	ErrInvalidPosition  = errors.New("store position out of range")
)

// AppError wraps errors with additional context for HTTP responses
type AppError struct {
	Err        error  // The underlying error
	Message    string // User-friendly message
	Code       string // Machine-readable error code
	StatusCode int    // HTTP status code
	Details    map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewBadRequestError reports a malformed request body
func NewBadRequestError(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "BAD_REQUEST",
		StatusCode: 400,
	}
}

// ValidationErrors holds multiple field validation errors
type ValidationErrors struct {
	Errors map[string][]string `json:"errors"`
}

func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make(map[string][]string),
	}
}

func (v *ValidationErrors) Add(field, message string) {
	v.Errors[field] = append(v.Errors[field], message)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// First returns the first message recorded for field, or "".
func (v *ValidationErrors) First(field string) string {
	if msgs := v.Errors[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

func (v *ValidationErrors) Error() string {
	return fmt.Sprintf("validation failed: %d field(s) have errors", len(v.Errors))
}

// Is reports ValidationErrors as ErrValidation so callers can match with errors.Is.
func (v *ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// StoreError records a failed call against a tabular store backend.
type StoreError struct {
	Backend string
	Op      string
	Err     error
}

// NewStoreError wraps err as a StoreError. A nil err returns nil.
func NewStoreError(backend, op string, err error) error {
	if err == nil {
		return nil
	}
	var existing *StoreError
	if errors.As(err, &existing) {
		return err
	}
	return &StoreError{Backend: backend, Op: op, Err: err}
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s store: %s: %v", e.Backend, e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is matches ErrStoreUnavailable unless the cause is a position error,
// which is a caller mistake rather than an outage.
func (e *StoreError) Is(target error) bool {
	if target != ErrStoreUnavailable {
		return false
	}
	return !errors.Is(e.Err, ErrInvalidPosition)
}
