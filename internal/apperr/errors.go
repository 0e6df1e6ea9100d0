// Package apperr defines the error taxonomy shared by the stores, the
// workflows and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the caller does not own the entity.
	ErrForbidden = errors.New("forbidden")
	// ErrConflict means the write collides with existing state, e.g. a duplicate proposal.
	ErrConflict = errors.New("conflict")
	// ErrInvalidState means the operation is not legal in the entity's current status.
	ErrInvalidState = errors.New("invalid state")
	// ErrInsufficientCredits means the balance is lower than the requested debit.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrInvariantViolation means stored data is corrupted. Never returned for bad input.
	ErrInvariantViolation = errors.New("invariant violation")
	// ErrValidation means the request payload is malformed or unsafe.
	ErrValidation = errors.New("validation failed")
)

// FieldError attaches an expected failure to a request field so the client
// can show a targeted message.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Field wraps sentinel err as a FieldError on field.
func Field(field string, err error, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...), Err: err}
}

// Code returns the stable machine-readable code for err.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrValidation):
		return "validation_failed"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	default:
		return "internal"
	}
}

// Expected reports whether err is a caller-facing outcome rather than a fault.
func Expected(err error) bool {
	switch Code(err) {
	case "internal", "invariant_violation":
		return false
	}
	return true
}
