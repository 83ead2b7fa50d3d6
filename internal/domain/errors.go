package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation = errors.New("validation failed")
	ErrConflict   = errors.New("slot not available")
	ErrNotFound   = errors.New("not found")

	// ErrConcurrentModification is returned when a store gave up retrying a
	// write that kept racing with other writers.
	ErrConcurrentModification = errors.New("concurrent modification")
)

// ValidationError reports bad caller input. Nothing was written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError reports slots that were not bookable at commit time.
type ConflictError struct {
	Date   string
	Slots  []string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s on %s: %s", e.Reason, e.Date, strings.Join(e.Slots, ", "))
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// Kind classifies err for transport layers.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict), errors.Is(err, ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
