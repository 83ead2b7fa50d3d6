package domain

import (
	"context"

	"slotbook/internal/models"
)

// DayMutation edits a private copy of a day. Returning an error aborts the write.
type DayMutation func(day *models.DayLedger) error

// LedgerStore is the persistence capability behind the booking engine.
// UpdateDay must serialize concurrent writers of the same date: it loads the
// latest snapshot, runs fn on a copy and writes the result back atomically.
type LedgerStore interface {
	LoadDay(ctx context.Context, date string) (*models.DayLedger, error)
	LoadRange(ctx context.Context, from, to string) (models.Ledger, error)
	UpdateDay(ctx context.Context, date string, fn DayMutation) (*models.DayLedger, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// GroundRegistry answers which physical ground a sport occupies.
type GroundRegistry interface {
	GroundOf(sport string) string
	SportsContend(a, b string) bool
	Known(sport string) bool
}

type BookingService interface {
	Book(ctx context.Context, req models.BookingRequest) (*models.BookingBatch, error)
	Cancel(ctx context.Context, req models.CancelRequest) (*models.CancelResult, error)
	CancelByID(ctx context.Context, date, bookingID string) (*models.CancelResult, error)
	ToggleBlock(ctx context.Context, date, slot string) (*models.BlockState, error)
	Block(ctx context.Context, date, slot string) (*models.BlockState, error)
	Unblock(ctx context.Context, date, slot string) (*models.BlockState, error)
	GetBatch(ctx context.Context, date, batchID string) (*models.BookingBatch, error)
	LoadDay(ctx context.Context, date string) (*models.DayLedger, error)
	ExportRange(ctx context.Context, from, to string) (models.Ledger, error)
}
