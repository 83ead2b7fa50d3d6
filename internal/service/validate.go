package service

import (
	"fmt"
	"strings"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"
)

// mobileSeparators may appear between digits of a mobile number.
const mobileSeparators = "+ -()."

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, domain.NewValidationError(field, "is required")
	}
	t, err := models.ParseDate(value)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, fmt.Sprintf("%q is not a YYYY-MM-DD date", value))
	}
	return t, nil
}

// checkBookable enforces the booking window relative to today in loc.
func (s *BookingService) checkBookable(date time.Time) error {
	now := s.opts.Now().In(s.opts.Location)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	if s.opts.RejectPastDates && date.Before(today) {
		return domain.NewValidationError("date", "is in the past")
	}
	if s.opts.MaxAdvanceDays > 0 && date.After(today.AddDate(0, 0, s.opts.MaxAdvanceDays)) {
		return domain.NewValidationError("date", fmt.Sprintf("is more than %d days ahead", s.opts.MaxAdvanceDays))
	}
	return nil
}

func validateSlot(field, slot string) error {
	if strings.TrimSpace(slot) == "" {
		return domain.NewValidationError(field, "is required")
	}
	if !models.IsValidSlot(slot) {
		return domain.NewValidationError(field, fmt.Sprintf("unknown slot %q", slot))
	}
	return nil
}

func validateSlots(slots []string) error {
	if len(slots) == 0 {
		return domain.NewValidationError("slots", "select at least one slot")
	}
	seen := make(map[string]bool, len(slots))
	for _, slot := range slots {
		if err := validateSlot("slots", slot); err != nil {
			return err
		}
		if seen[slot] {
			return domain.NewValidationError("slots", fmt.Sprintf("slot %q listed twice", slot))
		}
		seen[slot] = true
	}
	return nil
}

// validateCustomer returns the customer with trimmed fields.
func validateCustomer(c models.Customer, minDigits int) (models.Customer, error) {
	c.Name = strings.TrimSpace(c.Name)
	c.Mobile = strings.TrimSpace(c.Mobile)
	c.Address = strings.TrimSpace(c.Address)

	if c.Name == "" {
		return c, domain.NewValidationError("name", "is required")
	}
	if err := validateMobile(c.Mobile, minDigits); err != nil {
		return c, err
	}
	return c, nil
}

func validateMobile(mobile string, minDigits int) error {
	if mobile == "" {
		return domain.NewValidationError("mobile", "is required")
	}
	digits := 0
	for _, r := range mobile {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case strings.ContainsRune(mobileSeparators, r):
		default:
			return domain.NewValidationError("mobile", "may contain only digits and + - ( ) . separators")
		}
	}
	if digits < minDigits {
		return domain.NewValidationError("mobile", fmt.Sprintf("needs at least %d digits", minDigits))
	}
	return nil
}
