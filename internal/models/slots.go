package models

import (
	"fmt"
	"time"
)

var (
	dailySlots = buildDailySlots()
	slotIndex  = buildSlotIndex(dailySlots)
)

func buildDailySlots() []string {
	slots := make([]string, 0, SlotsPerDay)
	for hour := 0; hour < SlotsPerDay; hour++ {
		slots = append(slots, SlotLabel(hour))
	}
	return slots
}

func buildSlotIndex(slots []string) map[string]int {
	idx := make(map[string]int, len(slots))
	for i, s := range slots {
		idx[s] = i
	}
	return idx
}

// SlotLabel formats the slot starting at hour as "HH:00 - HH:00".
// The last slot of the day is "23:00 - 24:00".
func SlotLabel(hour int) string {
	return fmt.Sprintf("%02d:00 - %02d:00", hour, hour+1)
}

// DailySlots returns the fixed daily enumeration of slot labels in order.
func DailySlots() []string {
	return append([]string(nil), dailySlots...)
}

// SlotIndex returns the position of label in the daily enumeration.
func SlotIndex(label string) (int, bool) {
	i, ok := slotIndex[label]
	return i, ok
}

func IsValidSlot(label string) bool {
	_, ok := slotIndex[label]
	return ok
}

// ParseDate parses a ledger date key (YYYY-MM-DD).
func ParseDate(value string) (time.Time, error) {
	return time.Parse(DateLayout, value)
}
