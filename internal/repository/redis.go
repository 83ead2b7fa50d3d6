package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"slotbook/internal/config"
	"slotbook/internal/domain"
	"slotbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisLedgerStore keeps one JSON document per date plus a sorted index of
// dates. Writes use WATCH/MULTI and retry on conflicting writers.
type RedisLedgerStore struct {
	client  *redis.Client
	prefix  string
	retries int
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisLedgerStore(client *redis.Client, prefix string, retries int) *RedisLedgerStore {
	if prefix == "" {
		prefix = "slotbook"
	}
	if retries <= 0 {
		retries = models.DefaultStoreRetries
	}
	return &RedisLedgerStore{client: client, prefix: prefix, retries: retries}
}

func (r *RedisLedgerStore) dayKey(date string) string {
	return fmt.Sprintf("%s:day:%s", r.prefix, date)
}

func (r *RedisLedgerStore) datesKey() string {
	return fmt.Sprintf("%s:dates", r.prefix)
}

func (r *RedisLedgerStore) LoadDay(ctx context.Context, date string) (*models.DayLedger, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	return getDay(ctx, r.client, r.dayKey(date), date)
}

func (r *RedisLedgerStore) LoadRange(ctx context.Context, from, to string) (models.Ledger, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	fromScore, err := dateScore(from)
	if err != nil {
		return nil, err
	}
	toScore, err := dateScore(to)
	if err != nil {
		return nil, err
	}

	dates, err := r.client.ZRangeByScore(ctx, r.datesKey(), &redis.ZRangeBy{
		Min: fmt.Sprintf("%d", fromScore),
		Max: fmt.Sprintf("%d", toScore),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dates from redis: %w", err)
	}

	ledger := make(models.Ledger, len(dates))
	if len(dates) == 0 {
		return ledger, nil
	}

	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = r.dayKey(d)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load days from redis: %w", err)
	}

	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var day models.DayLedger
		if err := json.Unmarshal([]byte(raw), &day); err != nil {
			return nil, fmt.Errorf("failed to unmarshal day %s: %w", dates[i], err)
		}
		if !day.IsEmpty() {
			ledger[dates[i]] = &day
		}
	}
	return ledger, nil
}

func (r *RedisLedgerStore) UpdateDay(ctx context.Context, date string, fn domain.DayMutation) (*models.DayLedger, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	score, err := dateScore(date)
	if err != nil {
		return nil, err
	}
	key := r.dayKey(date)

	for attempt := 0; attempt < r.retries; attempt++ {
		var result *models.DayLedger
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			current, err := getDay(ctx, tx, key, date)
			if err != nil {
				return err
			}

			next := current.Clone()
			if err := fn(next); err != nil {
				return err
			}
			if models.Diff(current, next).Empty() {
				result = current
				return nil
			}

			next.Date = date
			next.Version = current.Version + 1
			next.UpdatedAt = time.Now().UTC()
			data, err := json.Marshal(next)
			if err != nil {
				return fmt.Errorf("failed to marshal day: %w", err)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				pipe.ZAdd(ctx, r.datesKey(), redis.Z{Score: float64(score), Member: date})
				return nil
			})
			if err != nil {
				return err
			}
			result = next
			return nil
		}, key)

		if err == nil {
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}

	return nil, fmt.Errorf("update day %s after %d attempts: %w", date, r.retries, domain.ErrConcurrentModification)
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func getDay(ctx context.Context, c redis.Cmdable, key, date string) (*models.DayLedger, error) {
	val, err := c.Get(ctx, key).Result()
	if err == redis.Nil {
		return models.NewDayLedger(date), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get day from redis: %w", err)
	}

	var day models.DayLedger
	if err := json.Unmarshal([]byte(val), &day); err != nil {
		return nil, fmt.Errorf("failed to unmarshal day: %w", err)
	}
	if day.Bookings == nil {
		day.Bookings = []models.Booking{}
	}
	if day.Blocks == nil {
		day.Blocks = []models.Block{}
	}
	return &day, nil
}

// dateScore orders dates in the index by days since the epoch.
func dateScore(date string) (int64, error) {
	t, err := models.ParseDate(date)
	if err != nil {
		return 0, domain.NewValidationError("date", err.Error())
	}
	return t.Unix() / 86400, nil
}
