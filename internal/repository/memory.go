package repository

import (
	"context"
	"sync"
	"time"

	"slotbook/internal/domain"
	"slotbook/internal/models"
)

// MemoryLedgerStore keeps the ledger in process memory. Writers are
// serialized by a single mutex.
type MemoryLedgerStore struct {
	mu   sync.RWMutex
	days map[string]*models.DayLedger
	now  func() time.Time
}

func NewMemoryLedgerStore() *MemoryLedgerStore {
	return &MemoryLedgerStore{
		days: make(map[string]*models.DayLedger),
		now:  time.Now,
	}
}

func (r *MemoryLedgerStore) LoadDay(ctx context.Context, date string) (*models.DayLedger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if day, ok := r.days[date]; ok {
		return day.Clone(), nil
	}
	return models.NewDayLedger(date), nil
}

func (r *MemoryLedgerStore) LoadRange(ctx context.Context, from, to string) (models.Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	ledger := make(models.Ledger)
	for date, day := range r.days {
		if date >= from && date <= to && !day.IsEmpty() {
			ledger[date] = day.Clone()
		}
	}
	return ledger, nil
}

func (r *MemoryLedgerStore) UpdateDay(ctx context.Context, date string, fn domain.DayMutation) (*models.DayLedger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.days[date]
	if !ok {
		current = models.NewDayLedger(date)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if models.Diff(current, next).Empty() {
		return current.Clone(), nil
	}

	next.Date = date
	next.Version = current.Version + 1
	next.UpdatedAt = r.now().UTC()
	r.days[date] = next
	return next.Clone(), nil
}
