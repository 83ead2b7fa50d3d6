package availability

import (
	"testing"
	"time"

	"slotbook/internal/grounds"
	"slotbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDate = "2024-06-01"

var sports = []string{"football", "cricket", "pickleball", "stitchball"}

func booking(slot, sport string) models.Booking {
	return models.Booking{
		ID:           "b-" + sport + "-" + slot,
		Date:         testDate,
		Slot:         slot,
		Sport:        sport,
		Ground:       grounds.Default().GroundOf(sport),
		CustomerName: "Alice",
		CreatedAt:    time.Date(2024, 5, 30, 10, 0, 0, 0, time.UTC),
	}
}

func TestEmptyDayFullyAvailable(t *testing.T) {
	reg := grounds.Default()
	for _, day := range []*models.DayLedger{nil, models.NewDayLedger(testDate)} {
		for _, sport := range sports {
			for _, slot := range models.DailySlots() {
				assert.True(t, IsAvailable(reg, day, slot, sport), "%s %s", sport, slot)
			}
		}
	}
}

func TestContentionMatrix(t *testing.T) {
	reg := grounds.Default()
	slot := models.SlotLabel(9)

	for _, booked := range sports {
		day := models.NewDayLedger(testDate)
		day.Bookings = append(day.Bookings, booking(slot, booked))

		for _, asked := range sports {
			want := !reg.SportsContend(booked, asked)
			assert.Equal(t, want, IsAvailable(reg, day, slot, asked), "booked %s, asked %s", booked, asked)
		}
		// other hours untouched
		assert.True(t, IsAvailable(reg, day, models.SlotLabel(10), booked))
	}
}

func TestScenarioFootballBlocksCricketOnly(t *testing.T) {
	reg := grounds.Default()
	slot := "09:00 - 10:00"
	day := models.NewDayLedger(testDate)
	day.Bookings = append(day.Bookings, booking(slot, "football"))

	assert.False(t, IsAvailable(reg, day, slot, "cricket"))
	assert.False(t, IsAvailable(reg, day, slot, "football"))
	assert.True(t, IsAvailable(reg, day, slot, "pickleball"))
	assert.True(t, IsAvailable(reg, day, slot, "stitchball"))
}

func TestBlockIsAbsolute(t *testing.T) {
	reg := grounds.Default()
	slot := models.SlotLabel(10)
	day := models.NewDayLedger(testDate)
	require.True(t, day.AddBlock(models.Block{Date: testDate, Slot: slot}))

	for _, sport := range append(sports, "unregistered") {
		assert.False(t, IsAvailable(reg, day, slot, sport))
	}

	require.True(t, day.RemoveBlock(slot))
	for _, sport := range sports {
		assert.True(t, IsAvailable(reg, day, slot, sport))
	}
}

func TestComputeDaySlots(t *testing.T) {
	reg := grounds.Default()
	day := models.NewDayLedger(testDate)
	day.Bookings = append(day.Bookings, booking(models.SlotLabel(9), "football"))
	day.AddBlock(models.Block{Date: testDate, Slot: models.SlotLabel(23)})

	view := ComputeDaySlots(reg, day, "cricket")
	require.Len(t, view, models.SlotsPerDay)

	for i, row := range view {
		assert.Equal(t, i, row.Index)
		assert.Equal(t, models.SlotLabel(i), row.Label)
	}
	assert.Equal(t, "00:00 - 01:00", view[0].Label)
	assert.Equal(t, "23:00 - 24:00", view[23].Label)

	assert.False(t, view[9].Available)
	assert.False(t, view[9].Blocked)
	assert.False(t, view[23].Available)
	assert.True(t, view[23].Blocked)
	assert.True(t, view[10].Available)
}

func TestComputeDaySlotsDoesNotMutate(t *testing.T) {
	reg := grounds.Default()
	day := models.NewDayLedger(testDate)
	day.Bookings = append(day.Bookings, booking(models.SlotLabel(1), "football"))
	before := day.Clone()

	_ = ComputeDaySlots(reg, day, "football")
	_ = ComputeAdminDay(reg, day)

	assert.Equal(t, before, day)
}

func TestComputeAdminDay(t *testing.T) {
	reg := grounds.Default()
	slot := models.SlotLabel(9)
	day := models.NewDayLedger(testDate)
	day.Version = 3
	day.Bookings = append(day.Bookings, booking(slot, "football"), booking(slot, "pickleball"), booking(models.SlotLabel(12), "stitchball"))
	day.AddBlock(models.Block{Date: testDate, Slot: models.SlotLabel(20)})

	view := ComputeAdminDay(reg, day)

	assert.Equal(t, testDate, view.Date)
	assert.Equal(t, int64(3), view.Version)
	require.Len(t, view.Slots, models.SlotsPerDay)
	assert.Equal(t, 3, view.TotalBookings)
	assert.Equal(t, 2, view.BookedSlots)
	assert.Equal(t, 1, view.BlockedSlots)

	nine := view.Slots[9]
	assert.Equal(t, 2, nine.BookingCount)
	assert.Equal(t, []string{grounds.MainTurf, grounds.PickleballCourt}, nine.OccupiedGrounds)
	assert.False(t, nine.Blocked)

	twenty := view.Slots[20]
	assert.True(t, twenty.Blocked)
	require.NotNil(t, twenty.Block)
	assert.Equal(t, models.SlotLabel(20), twenty.Block.Slot)
	assert.Empty(t, twenty.Bookings)
	assert.NotNil(t, twenty.Bookings)
}

func TestComputeAdminDayNil(t *testing.T) {
	view := ComputeAdminDay(grounds.Default(), nil)
	assert.Len(t, view.Slots, models.SlotsPerDay)
	assert.Zero(t, view.TotalBookings)
}
