package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const timeLayout = time.RFC3339Nano

func (db *DB) LoadDay(ctx context.Context, date string) (*models.DayLedger, error) {
	day, err := loadDay(ctx, db.DB, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load day %s: %w", date, err)
	}
	return day, nil
}

func (db *DB) LoadRange(ctx context.Context, from, to string) (models.Ledger, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT date FROM ledger_days WHERE date BETWEEN ? AND ? ORDER BY date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list dates: %w", err)
	}

	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			rows.Close()
			return nil, err
		}
		dates = append(dates, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ledger := make(models.Ledger, len(dates))
	for _, d := range dates {
		day, err := loadDay(ctx, db.DB, d)
		if err != nil {
			return nil, fmt.Errorf("failed to load day %s: %w", d, err)
		}
		if !day.IsEmpty() {
			ledger[d] = day
		}
	}
	return ledger, nil
}

// UpdateDay runs fn inside an immediate transaction and writes only the rows
// that changed.
func (db *DB) UpdateDay(ctx context.Context, date string, fn domain.DayMutation) (*models.DayLedger, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	current, err := loadDay(ctx, tx, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load day in tx: %w", err)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	diff := models.Diff(current, next)
	if diff.Empty() {
		return current, nil
	}

	if err := applyDiff(ctx, tx, date, diff); err != nil {
		return nil, err
	}

	next.Date = date
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO ledger_days (date, version, updated_at) VALUES (?, ?, ?)
         ON CONFLICT(date) DO UPDATE SET version = excluded.version, updated_at = excluded.updated_at`,
		date, next.Version, next.UpdatedAt.Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to bump day version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit day %s: %w", date, err)
	}

	if db.logger != nil {
		db.logger.Debug().
			Str("date", date).
			Int64("version", next.Version).
			Int("added_bookings", len(diff.AddedBookings)).
			Int("removed_bookings", len(diff.RemovedBookings)).
			Msg("day updated")
	}
	return next, nil
}

func applyDiff(ctx context.Context, tx *sql.Tx, date string, diff models.DayDiff) error {
	for _, id := range diff.RemovedBookings {
		if _, err := tx.ExecContext(ctx, `DELETE FROM bookings WHERE id = ? AND date = ?`, id, date); err != nil {
			return fmt.Errorf("failed to delete booking %s: %w", id, err)
		}
	}
	for _, b := range diff.AddedBookings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO bookings (
                id, batch_id, date, slot, sport, ground,
                customer_name, customer_mobile, customer_address, created_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.BatchID, date, b.Slot, b.Sport, b.Ground,
			b.CustomerName, b.CustomerMobile, b.CustomerAddress, b.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("failed to insert booking %s: %w", b.ID, err)
		}
	}
	for _, slot := range diff.RemovedBlocks {
		if _, err := tx.ExecContext(ctx, `DELETE FROM blocks WHERE date = ? AND slot = ?`, date, slot); err != nil {
			return fmt.Errorf("failed to delete block %s: %w", slot, err)
		}
	}
	for _, b := range diff.AddedBlocks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO blocks (date, slot, created_at) VALUES (?, ?, ?)`,
			date, b.Slot, b.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("failed to insert block %s: %w", b.Slot, err)
		}
	}
	return nil
}

func loadDay(ctx context.Context, q querier, date string) (*models.DayLedger, error) {
	day := models.NewDayLedger(date)

	var updatedAt string
	err := q.QueryRowContext(ctx,
		`SELECT version, updated_at FROM ledger_days WHERE date = ?`, date).Scan(&day.Version, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return day, nil
	}
	if err != nil {
		return nil, err
	}
	if day.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx,
		`SELECT id, batch_id, slot, sport, ground, customer_name, customer_mobile, customer_address, created_at
         FROM bookings WHERE date = ? ORDER BY rowid`, date)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		b := models.Booking{Date: date}
		var createdAt string
		if err := rows.Scan(&b.ID, &b.BatchID, &b.Slot, &b.Sport, &b.Ground,
			&b.CustomerName, &b.CustomerMobile, &b.CustomerAddress, &createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		if b.CreatedAt, err = parseTime(createdAt); err != nil {
			rows.Close()
			return nil, err
		}
		day.Bookings = append(day.Bookings, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.QueryContext(ctx,
		`SELECT slot, created_at FROM blocks WHERE date = ? ORDER BY rowid`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		b := models.Block{Date: date}
		var createdAt string
		if err := rows.Scan(&b.Slot, &createdAt); err != nil {
			return nil, err
		}
		if b.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		day.Blocks = append(day.Blocks, b)
	}
	return day, rows.Err()
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", value, err)
	}
	return t, nil
}
