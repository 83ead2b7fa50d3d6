package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKinds(t *testing.T) {
	verr := NewValidationError("mobile", "too short")
	assert.True(t, errors.Is(verr, ErrValidation))
	assert.Equal(t, "invalid mobile: too short", verr.Error())

	cerr := &ConflictError{Date: "2024-06-01", Slots: []string{"10:00 - 11:00"}, Reason: "slot blocked"}
	wrapped := fmt.Errorf("book: %w", cerr)
	assert.True(t, errors.Is(wrapped, ErrConflict))

	var target *ConflictError
	assert.True(t, errors.As(wrapped, &target))
	assert.Equal(t, []string{"10:00 - 11:00"}, target.Slots)

	nerr := &NotFoundError{Resource: "booking", Key: "abc"}
	assert.Equal(t, "booking not found: abc", nerr.Error())

	assert.Equal(t, "validation", Kind(verr))
	assert.Equal(t, "conflict", Kind(wrapped))
	assert.Equal(t, "conflict", Kind(ErrConcurrentModification))
	assert.Equal(t, "not_found", Kind(nerr))
	assert.Equal(t, "internal", Kind(errors.New("disk on fire")))
	assert.Equal(t, "", Kind(nil))
}
