// Package storetest holds the behaviour every domain.LedgerStore must share.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Writers is the number of goroutines racing in the concurrency case.
const Writers = 8

var created = time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)

// Booking builds a fixture booking.
func Booking(id, date, slot, sport string) models.Booking {
	return models.Booking{
		ID:              id,
		BatchID:         "batch-" + id,
		Date:            date,
		Slot:            slot,
		Sport:           sport,
		Ground:          sport,
		CustomerName:    "Alice",
		CustomerMobile:  "9876543210",
		CustomerAddress: "12 Turf Road",
		CreatedAt:       created,
	}
}

// Run exercises store against the shared contract. newStore must return an
// empty store.
func Run(t *testing.T, newStore func(t *testing.T) domain.LedgerStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("LoadMissingDay", func(t *testing.T) {
		store := newStore(t)
		day, err := store.LoadDay(ctx, "2024-06-01")
		require.NoError(t, err)
		require.NotNil(t, day)
		assert.Equal(t, "2024-06-01", day.Date)
		assert.True(t, day.IsEmpty())
		assert.Zero(t, day.Version)
	})

	t.Run("UpdateAndReload", func(t *testing.T) {
		store := newStore(t)
		b := Booking("b1", "2024-06-01", models.SlotLabel(9), "football")

		updated, err := store.UpdateDay(ctx, "2024-06-01", func(day *models.DayLedger) error {
			day.Bookings = append(day.Bookings, b)
			day.AddBlock(models.Block{Date: "2024-06-01", Slot: models.SlotLabel(10), CreatedAt: created})
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), updated.Version)

		day, err := store.LoadDay(ctx, "2024-06-01")
		require.NoError(t, err)
		assert.Equal(t, int64(1), day.Version)
		require.Len(t, day.Bookings, 1)
		AssertBooking(t, b, day.Bookings[0])
		assert.True(t, day.IsBlocked(models.SlotLabel(10)))
	})

	t.Run("MutationErrorWritesNothing", func(t *testing.T) {
		store := newStore(t)
		boom := errors.New("boom")

		_, err := store.UpdateDay(ctx, "2024-06-02", func(day *models.DayLedger) error {
			day.Bookings = append(day.Bookings, Booking("b1", "2024-06-02", models.SlotLabel(1), "football"))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		day, err := store.LoadDay(ctx, "2024-06-02")
		require.NoError(t, err)
		assert.True(t, day.IsEmpty())
	})

	t.Run("NoopKeepsVersion", func(t *testing.T) {
		store := newStore(t)
		_, err := store.UpdateDay(ctx, "2024-06-03", func(day *models.DayLedger) error {
			day.AddBlock(models.Block{Date: "2024-06-03", Slot: models.SlotLabel(5), CreatedAt: created})
			return nil
		})
		require.NoError(t, err)

		day, err := store.UpdateDay(ctx, "2024-06-03", func(*models.DayLedger) error { return nil })
		require.NoError(t, err)
		assert.Equal(t, int64(1), day.Version)
	})

	t.Run("RemovalsPersist", func(t *testing.T) {
		store := newStore(t)
		date := "2024-06-04"
		_, err := store.UpdateDay(ctx, date, func(day *models.DayLedger) error {
			day.Bookings = append(day.Bookings,
				Booking("keep", date, models.SlotLabel(7), "pickleball"),
				Booking("drop", date, models.SlotLabel(8), "football"))
			day.AddBlock(models.Block{Date: date, Slot: models.SlotLabel(20), CreatedAt: created})
			return nil
		})
		require.NoError(t, err)

		_, err = store.UpdateDay(ctx, date, func(day *models.DayLedger) error {
			day.RemoveBookings(func(b models.Booking) bool { return b.ID == "drop" })
			day.RemoveBlock(models.SlotLabel(20))
			return nil
		})
		require.NoError(t, err)

		day, err := store.LoadDay(ctx, date)
		require.NoError(t, err)
		assert.Equal(t, int64(2), day.Version)
		require.Len(t, day.Bookings, 1)
		assert.Equal(t, "keep", day.Bookings[0].ID)
		assert.Empty(t, day.Blocks)
	})

	t.Run("LoadRange", func(t *testing.T) {
		store := newStore(t)
		for i, date := range []string{"2024-06-01", "2024-06-05", "2024-06-09"} {
			id := fmt.Sprintf("r%d", i)
			_, err := store.UpdateDay(ctx, date, func(day *models.DayLedger) error {
				day.Bookings = append(day.Bookings, Booking(id, date, models.SlotLabel(i), "cricket"))
				return nil
			})
			require.NoError(t, err)
		}

		ledger, err := store.LoadRange(ctx, "2024-06-02", "2024-06-09")
		require.NoError(t, err)
		assert.Equal(t, []string{"2024-06-05", "2024-06-09"}, ledger.Dates())
		require.Len(t, ledger.Day("2024-06-09").Bookings, 1)
		assert.Equal(t, "r2", ledger.Day("2024-06-09").Bookings[0].ID)
	})

	t.Run("ConcurrentWritersSerialize", func(t *testing.T) {
		store := newStore(t)
		date := "2024-06-10"

		var wg sync.WaitGroup
		errs := make(chan error, Writers)
		for i := 0; i < Writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.UpdateDay(ctx, date, func(day *models.DayLedger) error {
					day.Bookings = append(day.Bookings, Booking(fmt.Sprintf("c%d", i), date, models.SlotLabel(i), "football"))
					return nil
				})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		day, err := store.LoadDay(ctx, date)
		require.NoError(t, err)
		assert.Len(t, day.Bookings, Writers)
		assert.Equal(t, int64(Writers), day.Version)
	})
}

// AssertBooking compares bookings field by field, times by instant.
func AssertBooking(t *testing.T, want, got models.Booking) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.BatchID, got.BatchID)
	assert.Equal(t, want.Date, got.Date)
	assert.Equal(t, want.Slot, got.Slot)
	assert.Equal(t, want.Sport, got.Sport)
	assert.Equal(t, want.Ground, got.Ground)
	assert.Equal(t, want.CustomerName, got.CustomerName)
	assert.Equal(t, want.CustomerMobile, got.CustomerMobile)
	assert.Equal(t, want.CustomerAddress, got.CustomerAddress)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt), "created_at %s != %s", want.CreatedAt, got.CreatedAt)
}
