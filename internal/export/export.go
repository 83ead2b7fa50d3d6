// Package export renders a ledger range as an xlsx workbook for operators.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"slotbook/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	GridSheet     = "Grid"
	BookingsSheet = "Bookings"
)

const (
	colorHeader  = "#DDEBF7"
	colorSlot    = "#E2EFDA"
	colorBooked  = "#C6EFCE"
	colorBlocked = "#FFC7CE"
)

var bookingHeaders = []string{
	"Date", "Slot", "Sport", "Ground", "Customer", "Mobile", "Address", "Booking ID", "Batch ID", "Created At",
}

// Write streams the workbook for ledger between from and to (inclusive).
func Write(w io.Writer, ledger models.Ledger, from, to time.Time) error {
	f, err := Workbook(ledger, from, to)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Workbook builds a grid of slots by date plus a flat bookings table.
func Workbook(ledger models.Ledger, from, to time.Time) (*excelize.File, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("export range ends before it starts")
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(GridSheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(BookingsSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}

	if err := writeGrid(f, ledger, from, to); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeBookings(f, ledger); err != nil {
		_ = f.Close()
		return nil, err
	}

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")
	return f, nil
}

func writeGrid(f *excelize.File, ledger models.Ledger, from, to time.Time) error {
	_ = f.SetCellValue(GridSheet, "A1", fmt.Sprintf("Period: %s - %s",
		from.Format(models.DateLayout), to.Format(models.DateLayout)))
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("title style: %w", err)
	}
	_ = f.SetCellStyle(GridSheet, "A1", "A1", titleStyle)

	headerStyle, err := fillStyle(f, colorHeader, true)
	if err != nil {
		return err
	}
	slotStyle, err := fillStyle(f, colorSlot, true)
	if err != nil {
		return err
	}
	bookedStyle, err := fillStyle(f, colorBooked, false)
	if err != nil {
		return err
	}
	blockedStyle, err := fillStyle(f, colorBlocked, false)
	if err != nil {
		return err
	}

	for i, label := range models.DailySlots() {
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		_ = f.SetCellValue(GridSheet, cell, label)
		_ = f.SetCellStyle(GridSheet, cell, cell, slotStyle)
	}

	col := 2
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		date := d.Format(models.DateLayout)
		header, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(GridSheet, header, date)
		_ = f.SetCellStyle(GridSheet, header, header, headerStyle)

		day := ledger.Day(date)
		for i, label := range models.DailySlots() {
			cell, _ := excelize.CoordinatesToCellName(col, i+3)
			switch {
			case day.IsBlocked(label):
				_ = f.SetCellValue(GridSheet, cell, "BLOCKED")
				_ = f.SetCellStyle(GridSheet, cell, cell, blockedStyle)
			case len(day.BookingsAt(label)) > 0:
				_ = f.SetCellValue(GridSheet, cell, describe(day.BookingsAt(label)))
				_ = f.SetCellStyle(GridSheet, cell, cell, bookedStyle)
			}
		}
		colName, _ := excelize.ColumnNumberToName(col)
		_ = f.SetColWidth(GridSheet, colName, colName, 28)
		col++
	}

	_ = f.SetColWidth(GridSheet, "A", "A", 16)
	lastCol, _ := excelize.ColumnNumberToName(col - 1)
	if col > 2 {
		_ = f.MergeCell(GridSheet, "A1", lastCol+"1")
	}
	return nil
}

func writeBookings(f *excelize.File, ledger models.Ledger) error {
	for i, header := range bookingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(BookingsSheet, cell, header)
	}
	headerStyle, err := fillStyle(f, colorHeader, true)
	if err != nil {
		return err
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(bookingHeaders), 1)
	_ = f.SetCellStyle(BookingsSheet, "A1", lastHeader, headerStyle)

	row := 2
	for _, date := range ledger.Dates() {
		bookings := append([]models.Booking(nil), ledger.Day(date).Bookings...)
		models.SortBookings(bookings)
		for _, b := range bookings {
			values := []interface{}{
				b.Date, b.Slot, b.Sport, b.Ground, b.CustomerName, b.CustomerMobile,
				b.CustomerAddress, b.ID, b.BatchID, b.CreatedAt.UTC().Format(time.RFC3339),
			}
			cell, _ := excelize.CoordinatesToCellName(1, row)
			if err := f.SetSheetRow(BookingsSheet, cell, &values); err != nil {
				return fmt.Errorf("write booking row: %w", err)
			}
			row++
		}
	}

	_ = f.SetColWidth(BookingsSheet, "A", "D", 16)
	_ = f.SetColWidth(BookingsSheet, "E", "G", 22)
	_ = f.SetColWidth(BookingsSheet, "H", "J", 38)
	return nil
}

func describe(bookings []models.Booking) string {
	lines := make([]string, 0, len(bookings))
	for _, b := range bookings {
		lines = append(lines, fmt.Sprintf("%s: %s (%s)", b.Sport, b.CustomerName, b.CustomerMobile))
	}
	return strings.Join(lines, "\n")
}

func fillStyle(f *excelize.File, color string, bold bool) (int, error) {
	style, err := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		Font: &excelize.Font{Bold: bold},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "top",
			WrapText:   true,
		},
	})
	if err != nil {
		return 0, fmt.Errorf("cell style: %w", err)
	}
	return style, nil
}
