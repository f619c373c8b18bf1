package shared

import (
	"errors"
	"fmt"
)

// Domain failures. Services return these on the failure side of an OperationResult; callers test
// them with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyAwarded      = errors.New("points already awarded for this event")
	ErrInvalidConfirmation = errors.New("invalid confirmation token")
	ErrValidation          = errors.New("validation failed")
	ErrOCRUnsupported      = errors.New("text recognition is not configured")
)

// ValidationError describes a rejected input field. It matches ErrValidation under errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a *ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundf wraps ErrNotFound with a description of what was missing.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}
