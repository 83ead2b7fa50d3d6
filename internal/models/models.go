package models

import (
	"sort"
	"strings"
	"time"
)

// DayLedger is the canonical record of bookings and blocks for one date.
type DayLedger struct {
	Date      string    `json:"date"`
	Bookings  []Booking `json:"bookings"`
	Blocks    []Block   `json:"blocks"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewDayLedger(date string) *DayLedger {
	return &DayLedger{Date: date, Bookings: []Booking{}, Blocks: []Block{}}
}

// Clone returns a deep copy safe to mutate independently.
func (d *DayLedger) Clone() *DayLedger {
	if d == nil {
		return nil
	}
	c := *d
	c.Bookings = append(make([]Booking, 0, len(d.Bookings)), d.Bookings...)
	c.Blocks = append(make([]Block, 0, len(d.Blocks)), d.Blocks...)
	return &c
}

func (d *DayLedger) IsEmpty() bool {
	return d == nil || (len(d.Bookings) == 0 && len(d.Blocks) == 0)
}

func (d *DayLedger) IsBlocked(slot string) bool {
	if d == nil {
		return false
	}
	for _, b := range d.Blocks {
		if b.Slot == slot {
			return true
		}
	}
	return false
}

// BookingsAt returns the bookings occupying slot, in creation order.
func (d *DayLedger) BookingsAt(slot string) []Booking {
	if d == nil {
		return nil
	}
	var res []Booking
	for _, b := range d.Bookings {
		if b.Slot == slot {
			res = append(res, b)
		}
	}
	return res
}

func (d *DayLedger) FindBooking(id string) (Booking, bool) {
	if d == nil {
		return Booking{}, false
	}
	for _, b := range d.Bookings {
		if b.ID == id {
			return b, true
		}
	}
	return Booking{}, false
}

func (d *DayLedger) FindBatch(batchID string) []Booking {
	if d == nil || batchID == "" {
		return nil
	}
	var res []Booking
	for _, b := range d.Bookings {
		if b.BatchID == batchID {
			res = append(res, b)
		}
	}
	return res
}

// AddBlock adds a block for its slot and reports whether it was absent.
func (d *DayLedger) AddBlock(block Block) bool {
	if d.IsBlocked(block.Slot) {
		return false
	}
	d.Blocks = append(d.Blocks, block)
	return true
}

// RemoveBlock drops the block of slot and reports whether one existed.
func (d *DayLedger) RemoveBlock(slot string) bool {
	for i, b := range d.Blocks {
		if b.Slot == slot {
			d.Blocks = append(d.Blocks[:i], d.Blocks[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveBookings drops every booking for which match is true and returns them.
func (d *DayLedger) RemoveBookings(match func(Booking) bool) []Booking {
	kept := d.Bookings[:0]
	var removed []Booking
	for _, b := range d.Bookings {
		if match(b) {
			removed = append(removed, b)
			continue
		}
		kept = append(kept, b)
	}
	d.Bookings = kept
	return removed
}

// Ledger maps date keys to their day records.
type Ledger map[string]*DayLedger

// Day returns the record for date, or an empty one if nothing is stored.
func (l Ledger) Day(date string) *DayLedger {
	if d, ok := l[date]; ok && d != nil {
		return d
	}
	return NewDayLedger(date)
}

func (l Ledger) Dates() []string {
	dates := make([]string, 0, len(l))
	for date := range l {
		dates = append(dates, date)
	}
	sort.Strings(dates)
	return dates
}

// SortBookings orders bookings by slot, then creation time.
func SortBookings(bookings []Booking) {
	sort.SliceStable(bookings, func(i, j int) bool {
		si, _ := SlotIndex(bookings[i].Slot)
		sj, _ := SlotIndex(bookings[j].Slot)
		if si != sj {
			return si < sj
		}
		return bookings[i].CreatedAt.Before(bookings[j].CreatedAt)
	})
}

// DayDiff lists the row-level changes between two versions of a day.
type DayDiff struct {
	AddedBookings   []Booking
	RemovedBookings []string
	AddedBlocks     []Block
	RemovedBlocks   []string
}

func (d DayDiff) Empty() bool {
	return len(d.AddedBookings) == 0 && len(d.RemovedBookings) == 0 &&
		len(d.AddedBlocks) == 0 && len(d.RemovedBlocks) == 0
}

// Diff computes what must be written to turn before into after.
// Bookings are matched by id, blocks by slot.
func Diff(before, after *DayLedger) DayDiff {
	if before == nil {
		before = &DayLedger{}
	}
	if after == nil {
		after = &DayLedger{}
	}

	var diff DayDiff

	oldBookings := make(map[string]struct{}, len(before.Bookings))
	for _, b := range before.Bookings {
		oldBookings[b.ID] = struct{}{}
	}
	newBookings := make(map[string]struct{}, len(after.Bookings))
	for _, b := range after.Bookings {
		newBookings[b.ID] = struct{}{}
		if _, ok := oldBookings[b.ID]; !ok {
			diff.AddedBookings = append(diff.AddedBookings, b)
		}
	}
	for _, b := range before.Bookings {
		if _, ok := newBookings[b.ID]; !ok {
			diff.RemovedBookings = append(diff.RemovedBookings, b.ID)
		}
	}

	oldBlocks := make(map[string]struct{}, len(before.Blocks))
	for _, b := range before.Blocks {
		oldBlocks[b.Slot] = struct{}{}
	}
	newBlocks := make(map[string]struct{}, len(after.Blocks))
	for _, b := range after.Blocks {
		newBlocks[b.Slot] = struct{}{}
		if _, ok := oldBlocks[b.Slot]; !ok {
			diff.AddedBlocks = append(diff.AddedBlocks, b)
		}
	}
	for _, b := range before.Blocks {
		if _, ok := newBlocks[b.Slot]; !ok {
			diff.RemovedBlocks = append(diff.RemovedBlocks, b.Slot)
		}
	}

	return diff
}

// NormalizeSport is the stored form of a sport name.
func NormalizeSport(sport string) string {
	return strings.ToLower(strings.TrimSpace(sport))
}

// NormalizeName folds a customer name for matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}
