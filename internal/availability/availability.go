// Package availability derives slot views from a day's bookings and blocks.
// All functions are pure.
package availability

import (
	"sort"

	"slotbook/internal/domain"
	"slotbook/internal/models"
)

// SlotView is one row of the user day view.
type SlotView struct {
	Label     string `json:"label"`
	Index     int    `json:"index"`
	Available bool   `json:"available"`
	Blocked   bool   `json:"blocked"`
}

// AdminSlot is one row of the admin day view.
type AdminSlot struct {
	Label           string           `json:"label"`
	Index           int              `json:"index"`
	Blocked         bool             `json:"blocked"`
	Block           *models.Block    `json:"block,omitempty"`
	Bookings        []models.Booking `json:"bookings"`
	BookingCount    int              `json:"booking_count"`
	OccupiedGrounds []string         `json:"occupied_grounds"`
}

type AdminDay struct {
	Date          string      `json:"date"`
	Version       int64       `json:"version"`
	Slots         []AdminSlot `json:"slots"`
	TotalBookings int         `json:"total_bookings"`
	BlockedSlots  int         `json:"blocked_slots"`
	BookedSlots   int         `json:"booked_slots"`
}

// IsAvailable reports whether sport may take slot on day.
// Blocks win over everything; then any contending booking at the slot.
func IsAvailable(reg domain.GroundRegistry, day *models.DayLedger, slot, sport string) bool {
	if day.IsBlocked(slot) {
		return false
	}
	for _, b := range day.BookingsAt(slot) {
		if reg.SportsContend(b.Sport, sport) {
			return false
		}
	}
	return true
}

// ComputeDaySlots builds the user view of day for sport, in slot order.
func ComputeDaySlots(reg domain.GroundRegistry, day *models.DayLedger, sport string) []SlotView {
	slots := models.DailySlots()
	out := make([]SlotView, len(slots))
	for i, label := range slots {
		out[i] = SlotView{
			Label:     label,
			Index:     i,
			Available: IsAvailable(reg, day, label, sport),
			Blocked:   day.IsBlocked(label),
		}
	}
	return out
}

// ComputeAdminDay builds the operator view of day.
func ComputeAdminDay(reg domain.GroundRegistry, day *models.DayLedger) AdminDay {
	slots := models.DailySlots()
	view := AdminDay{Slots: make([]AdminSlot, len(slots))}
	if day != nil {
		view.Date = day.Date
		view.Version = day.Version
	}

	blocks := make(map[string]models.Block)
	if day != nil {
		for _, b := range day.Blocks {
			blocks[b.Slot] = b
		}
	}

	for i, label := range slots {
		bookings := day.BookingsAt(label)
		if bookings == nil {
			bookings = []models.Booking{}
		}
		row := AdminSlot{
			Label:           label,
			Index:           i,
			Bookings:        bookings,
			BookingCount:    len(bookings),
			OccupiedGrounds: occupiedGrounds(reg, bookings),
		}
		if b, ok := blocks[label]; ok {
			block := b
			row.Blocked = true
			row.Block = &block
			view.BlockedSlots++
		}
		if row.BookingCount > 0 {
			view.BookedSlots++
		}
		view.TotalBookings += row.BookingCount
		view.Slots[i] = row
	}
	return view
}

func occupiedGrounds(reg domain.GroundRegistry, bookings []models.Booking) []string {
	seen := make(map[string]bool, len(bookings))
	out := []string{}
	for _, b := range bookings {
		g := b.Ground
		if g == "" {
			g = reg.GroundOf(b.Sport)
		}
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return out
}
