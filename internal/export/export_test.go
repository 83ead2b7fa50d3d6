package export

import (
	"bytes"
	"testing"
	"time"

	"slotbook/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testLedger() models.Ledger {
	created := time.Date(2024, 5, 31, 9, 0, 0, 0, time.UTC)
	day := models.NewDayLedger("2024-06-01")
	day.Bookings = append(day.Bookings,
		models.Booking{ID: "b2", BatchID: "x", Date: "2024-06-01", Slot: models.SlotLabel(10), Sport: "pickleball",
			Ground: "pickleball-court", CustomerName: "Bob", CustomerMobile: "9123456780", CreatedAt: created},
		models.Booking{ID: "b1", BatchID: "y", Date: "2024-06-01", Slot: models.SlotLabel(9), Sport: "football",
			Ground: "main-turf", CustomerName: "Alice", CustomerMobile: "9876543210", CreatedAt: created},
	)
	day.AddBlock(models.Block{Date: "2024-06-01", Slot: models.SlotLabel(22)})
	return models.Ledger{"2024-06-01": day}
}

func TestWorkbook(t *testing.T) {
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 2)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, testLedger(), from, to))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{GridSheet, BookingsSheet}, f.GetSheetList())

	header, err := f.GetCellValue(GridSheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", header)
	last, err := f.GetCellValue(GridSheet, "D2")
	require.NoError(t, err)
	assert.Equal(t, "2024-06-03", last)

	slot, err := f.GetCellValue(GridSheet, "A3")
	require.NoError(t, err)
	assert.Equal(t, "00:00 - 01:00", slot)

	// row 3 is hour 0, so hour 9 sits on row 12
	booked, err := f.GetCellValue(GridSheet, "B12")
	require.NoError(t, err)
	assert.Equal(t, "football: Alice (9876543210)", booked)

	blocked, err := f.GetCellValue(GridSheet, "B25")
	require.NoError(t, err)
	assert.Equal(t, "BLOCKED", blocked)

	rows, err := f.GetRows(BookingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Date", rows[0][0])
	assert.Equal(t, "b1", rows[1][7])
	assert.Equal(t, "b2", rows[2][7])
}

func TestWorkbookRejectsInvertedRange(t *testing.T) {
	from := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	_, err := Workbook(models.Ledger{}, from, from.AddDate(0, 0, -1))
	assert.Error(t, err)
}
