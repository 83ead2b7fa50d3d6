// Package storage opens the ledger backend selected by storage.driver.
package storage

import (
	"context"
	"fmt"

	"slotbook/internal/availability"
	"slotbook/internal/config"
	"slotbook/internal/database"
	"slotbook/internal/domain"
	"slotbook/internal/models"
	"slotbook/internal/repository"

	"github.com/rs/zerolog"
)

// Store is an opened backend. Close releases its connections.
type Store struct {
	domain.LedgerStore
	// SQLite is set only for the sqlite driver, for backups.
	SQLite *database.DB
	close  func()
}

func (s *Store) Close() {
	if s.close != nil {
		s.close()
	}
}

// Open connects to the configured backend. Postgres migrations run here.
func Open(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*Store, error) {
	switch cfg.Storage.Driver {
	case models.StorageMemory:
		logger.Warn().Msg("using in-memory ledger, bookings are lost on restart")
		return &Store{LedgerStore: repository.NewMemoryLedgerStore()}, nil

	case models.StorageSQLite:
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			return nil, err
		}
		return &Store{LedgerStore: db, SQLite: db, close: func() { _ = db.Close() }}, nil

	case models.StorageRedis:
		client := repository.NewRedisClient(cfg.Redis)
		if err := repository.Ping(ctx, client); err != nil {
			_ = client.Close()
			return nil, err
		}
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
		store := repository.NewRedisLedgerStore(client, cfg.Redis.KeyPrefix, cfg.Storage.Retries)
		return &Store{LedgerStore: store, close: func() { _ = client.Close() }}, nil

	case models.StoragePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.Database.Postgres)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool, cfg.Database.Postgres.MigrationTable); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info().Str("host", cfg.Database.Postgres.Host).Msg("postgres connected")
		return &Store{LedgerStore: database.NewPostgresLedgerStore(pool, logger), close: pool.Close}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// ImportStats counts what Import did.
type ImportStats struct {
	Bookings int
	Blocks   int
	Skipped  int
}

// Import merges ledger into dst day by day. Bookings already present (by id)
// and blocks on already blocked slots are skipped, so a rerun is harmless.
// A record breaking contention or block rules stops the import; days
// written before it stay.
func Import(ctx context.Context, dst domain.LedgerStore, reg domain.GroundRegistry, ledger models.Ledger) (ImportStats, error) {
	var stats ImportStats
	for _, date := range ledger.Dates() {
		if _, err := models.ParseDate(date); err != nil {
			return stats, domain.NewValidationError("date", fmt.Sprintf("%q is not a YYYY-MM-DD date", date))
		}
		src := ledger.Day(date)

		var day ImportStats
		_, err := dst.UpdateDay(ctx, date, func(current *models.DayLedger) error {
			day = ImportStats{}
			for _, b := range src.Bookings {
				if _, exists := current.FindBooking(b.ID); exists || b.ID == "" {
					day.Skipped++
					continue
				}
				if !models.IsValidSlot(b.Slot) {
					return domain.NewValidationError("slot", fmt.Sprintf("unknown slot %q on %s", b.Slot, date))
				}
				b.Sport = models.NormalizeSport(b.Sport)
				if b.Sport == "" {
					return domain.NewValidationError("sport", fmt.Sprintf("booking %s on %s has no sport", b.ID, date))
				}
				if !availability.IsAvailable(reg, current, b.Slot, b.Sport) {
					return &domain.ConflictError{Date: date, Slots: []string{b.Slot}, Reason: "imported booking clashes"}
				}
				b.Date = date
				if b.Ground == "" {
					b.Ground = reg.GroundOf(b.Sport)
				}
				current.Bookings = append(current.Bookings, b)
				day.Bookings++
			}
			for _, bl := range src.Blocks {
				bl.Date = date
				if !models.IsValidSlot(bl.Slot) {
					return domain.NewValidationError("slot", fmt.Sprintf("unknown slot %q on %s", bl.Slot, date))
				}
				if len(current.BookingsAt(bl.Slot)) > 0 {
					return &domain.ConflictError{Date: date, Slots: []string{bl.Slot}, Reason: "imported block over bookings"}
				}
				if !current.AddBlock(bl) {
					day.Skipped++
					continue
				}
				day.Blocks++
			}
			return nil
		})
		if err != nil {
			return stats, fmt.Errorf("import %s: %w", date, err)
		}
		stats.Bookings += day.Bookings
		stats.Blocks += day.Blocks
		stats.Skipped += day.Skipped
	}
	return stats, nil
}
