package models

import "time"

const (
	// DateLayout формат ключа дня в журнале
	DateLayout = "2006-01-02"

	// SlotsPerDay количество часовых слотов в сутках
	SlotsPerDay = 24
)

const (
	// DefaultMinMobileDigits минимальное количество цифр в номере телефона
	DefaultMinMobileDigits = 10

	// DefaultMaxAdvanceDays насколько далеко вперёд можно бронировать
	DefaultMaxAdvanceDays = 365

	// DefaultStoreRetries количество попыток оптимистичной записи дня
	DefaultStoreRetries = 5

	// DefaultEventQueueSize размер очереди пересылки событий
	DefaultEventQueueSize = 256

	// DefaultRateLimitBurst запас запросов для ограничителя частоты
	DefaultRateLimitBurst = 5

	// DefaultRateLimitIdleTTL через сколько простоя забывается лимит клиента
	DefaultRateLimitIdleTTL = 10 * time.Minute

	// MaxRequestBodyBytes предел размера JSON тела запроса
	MaxRequestBodyBytes = 64 << 10
)

const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
)
