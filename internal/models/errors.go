package models

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a trigger, booking or contact does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnsupportedChannel is returned when no sender is registered for a channel.
var ErrUnsupportedChannel = errors.New("unsupported channel")

// ValidationError describes a rejected request field. It is raised before any
// state is mutated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrInvalidTransition is returned when a status change is not allowed by the
// trigger or booking state machine.
var ErrInvalidTransition = errors.New("invalid status transition")
