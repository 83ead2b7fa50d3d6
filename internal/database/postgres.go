package database

import (
	"context"
	"embed"
	"fmt"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/domain"
	"slotbook/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PostgresLedgerStore locks the day row with SELECT ... FOR UPDATE so
// writers of one date queue behind each other across processes.
type PostgresLedgerStore struct {
	pool   *pgxpool.Pool
	logger *zerolog.Logger
}

// NewPostgresPool connects and verifies the pool.
func NewPostgresPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Migrate applies the embedded goose migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, table string) error {
	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if table != "" {
		goose.SetTableName(table)
	}

	// goose работает с *sql.DB
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

func NewPostgresLedgerStore(pool *pgxpool.Pool, logger *zerolog.Logger) *PostgresLedgerStore {
	return &PostgresLedgerStore{pool: pool, logger: logger}
}

func (s *PostgresLedgerStore) LoadDay(ctx context.Context, date string) (*models.DayLedger, error) {
	day, err := pgLoadDay(ctx, s.pool, date, false)
	if err != nil {
		return nil, fmt.Errorf("load day %s: %w", date, err)
	}
	return day, nil
}

func (s *PostgresLedgerStore) LoadRange(ctx context.Context, from, to string) (models.Ledger, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT date FROM ledger_days WHERE date BETWEEN $1 AND $2 ORDER BY date`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list dates: %w", err)
	}
	dates, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan dates: %w", err)
	}

	ledger := make(models.Ledger, len(dates))
	for _, d := range dates {
		day, err := pgLoadDay(ctx, s.pool, d, false)
		if err != nil {
			return nil, fmt.Errorf("load day %s: %w", d, err)
		}
		if !day.IsEmpty() {
			ledger[d] = day
		}
	}
	return ledger, nil
}

func (s *PostgresLedgerStore) UpdateDay(ctx context.Context, date string, fn domain.DayMutation) (*models.DayLedger, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_days (date, version, updated_at) VALUES ($1, 0, now()) ON CONFLICT (date) DO NOTHING`,
		date); err != nil {
		return nil, fmt.Errorf("ensure day row: %w", err)
	}

	current, err := pgLoadDay(ctx, tx, date, true)
	if err != nil {
		return nil, fmt.Errorf("load day in tx: %w", err)
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}

	diff := models.Diff(current, next)
	if diff.Empty() {
		return current, nil
	}

	batch := &pgx.Batch{}
	for _, id := range diff.RemovedBookings {
		batch.Queue(`DELETE FROM bookings WHERE id = $1 AND date = $2`, id, date)
	}
	for _, b := range diff.AddedBookings {
		batch.Queue(`INSERT INTO bookings (
                id, batch_id, date, slot, sport, ground,
                customer_name, customer_mobile, customer_address, created_at
            ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			b.ID, b.BatchID, date, b.Slot, b.Sport, b.Ground,
			b.CustomerName, b.CustomerMobile, b.CustomerAddress, b.CreatedAt)
	}
	for _, slot := range diff.RemovedBlocks {
		batch.Queue(`DELETE FROM blocks WHERE date = $1 AND slot = $2`, date, slot)
	}
	for _, b := range diff.AddedBlocks {
		batch.Queue(`INSERT INTO blocks (date, slot, created_at) VALUES ($1, $2, $3)`, date, b.Slot, b.CreatedAt)
	}

	next.Date = date
	next.Version = current.Version + 1
	next.UpdatedAt = time.Now().UTC()
	batch.Queue(`UPDATE ledger_days SET version = $2, updated_at = $3 WHERE date = $1`, date, next.Version, next.UpdatedAt)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return nil, fmt.Errorf("write day %s: %w", date, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit day %s: %w", date, err)
	}

	if s.logger != nil {
		s.logger.Debug().Str("date", date).Int64("version", next.Version).Msg("day updated")
	}
	return next, nil
}

type pgQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func pgLoadDay(ctx context.Context, q pgQuerier, date string, lock bool) (*models.DayLedger, error) {
	day := models.NewDayLedger(date)

	query := `SELECT version, updated_at FROM ledger_days WHERE date = $1`
	if lock {
		query += ` FOR UPDATE`
	}
	err := q.QueryRow(ctx, query, date).Scan(&day.Version, &day.UpdatedAt)
	if err == pgx.ErrNoRows {
		return day, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx,
		`SELECT id, batch_id, slot, sport, ground, customer_name, customer_mobile, customer_address, created_at
         FROM bookings WHERE date = $1 ORDER BY seq`, date)
	if err != nil {
		return nil, err
	}
	bookings, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Booking, error) {
		b := models.Booking{Date: date}
		err := row.Scan(&b.ID, &b.BatchID, &b.Slot, &b.Sport, &b.Ground,
			&b.CustomerName, &b.CustomerMobile, &b.CustomerAddress, &b.CreatedAt)
		return b, err
	})
	if err != nil {
		return nil, err
	}
	day.Bookings = append(day.Bookings, bookings...)

	rows, err = q.Query(ctx, `SELECT slot, created_at FROM blocks WHERE date = $1 ORDER BY seq`, date)
	if err != nil {
		return nil, err
	}
	blocks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Block, error) {
		b := models.Block{Date: date}
		err := row.Scan(&b.Slot, &b.CreatedAt)
		return b, err
	})
	if err != nil {
		return nil, err
	}
	day.Blocks = append(day.Blocks, blocks...)
	return day, nil
}
