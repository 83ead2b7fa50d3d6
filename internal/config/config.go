package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"slotbook/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig        `yaml:"app"`
	Logging    LoggingConfig    `yaml:"logging"`
	API        APIConfig        `yaml:"api"`
	Storage    StorageConfig    `yaml:"storage"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Backup     BackupConfig     `yaml:"backup"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Booking    BookingConfig    `yaml:"booking"`
	Venue      VenueConfig      `yaml:"venue"`
	Events     EventsConfig     `yaml:"events"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port                int `yaml:"port"`
	ReadHeaderTimeoutMs int `yaml:"read_header_timeout_ms"`
	WriteTimeoutMs      int `yaml:"write_timeout_ms"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
	// TrustedProxies lists IPs or CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string `yaml:"trusted_proxies"`
	IdleTTLSeconds int      `yaml:"idle_ttl_seconds"`
}

// ParseTrustedProxy parses an IP or CIDR entry of trusted_proxies.
func ParseTrustedProxy(raw string) (netip.Prefix, error) {
	raw = strings.TrimSpace(raw)
	if strings.Contains(raw, "/") {
		p, err := netip.ParsePrefix(raw)
		if err != nil {
			return netip.Prefix{}, err
		}
		return p.Masked(), nil
	}
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

type StorageConfig struct {
	Driver  string `yaml:"driver"`
	Retries int    `yaml:"retries"`
}

type DatabaseConfig struct {
	Path     string         `yaml:"path"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type PostgresConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	DBName         string `yaml:"dbname"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
	MigrationTable string `yaml:"migration_table"`
}

// DSN builds a libpq connection string for pgx.
func (p PostgresConfig) DSN() string {
	parts := []string{
		fmt.Sprintf("host=%s", p.Host),
		fmt.Sprintf("port=%d", p.Port),
		fmt.Sprintf("user=%s", p.User),
		fmt.Sprintf("dbname=%s", p.DBName),
		fmt.Sprintf("sslmode=%s", p.SSLMode),
	}
	if p.Password != "" {
		parts = append(parts, fmt.Sprintf("password=%s", p.Password))
	}
	if p.MaxConnections > 0 {
		parts = append(parts, fmt.Sprintf("pool_max_conns=%d", p.MaxConnections))
	}
	return strings.Join(parts, " ")
}

type RedisConfig struct {
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	PoolSize  int    `yaml:"pool_size"`
	KeyPrefix string `yaml:"key_prefix"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type BookingConfig struct {
	MinMobileDigits int    `yaml:"min_mobile_digits"`
	// MaxAdvanceDays: nil means the default horizon, 0 means no limit.
	MaxAdvanceDays  *int   `yaml:"max_advance_days"`
	RejectPastDates bool   `yaml:"reject_past_dates"`
	Timezone        string `yaml:"timezone"`
}

// VenueConfig describes which ground every sport plays on.
type VenueConfig struct {
	Sports     []SportConfig `yaml:"sports"`
	Contending [][]string    `yaml:"contending"`
}

type SportConfig struct {
	Name   string `yaml:"name"`
	Ground string `yaml:"ground"`
}

type EventsConfig struct {
	AMQP AMQPConfig `yaml:"amqp"`
}

type AMQPConfig struct {
	Enabled    bool   `yaml:"enabled"`
	URL        string `yaml:"url"`
	Exchange   string `yaml:"exchange"`
	QueueSize  int    `yaml:"queue_size"`
	MaxRetries int    `yaml:"max_retries"`
}

func Load(configPath string) (*Config, error) {
	// .env необязателен: переменные могут прийти из окружения
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case models.StorageMemory:
	case models.StorageSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required for sqlite storage")
		}
	case models.StorageRedis:
		if c.Redis.Address == "" {
			return errors.New("redis address is required for redis storage")
		}
	case models.StoragePostgres:
		if c.Database.Postgres.Host == "" || c.Database.Postgres.DBName == "" {
			return errors.New("postgres host and dbname are required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	for _, raw := range c.API.RateLimit.TrustedProxies {
		if _, err := ParseTrustedProxy(raw); err != nil {
			return fmt.Errorf("api.rate_limit.trusted_proxies: %q is not an IP or CIDR", raw)
		}
	}

	if c.Events.AMQP.Enabled && c.Events.AMQP.URL == "" {
		return errors.New("events.amqp.url is required when amqp is enabled")
	}

	if c.Booking.MaxAdvanceDays != nil && *c.Booking.MaxAdvanceDays < 0 {
		return fmt.Errorf("booking.max_advance_days must not be negative, got %d", *c.Booking.MaxAdvanceDays)
	}

	if c.Booking.MinMobileDigits < 1 {
		return fmt.Errorf("booking.min_mobile_digits must be positive, got %d", c.Booking.MinMobileDigits)
	}

	return ValidateVenue(c.Venue)
}

// ValidateVenue checks sport names and contention pairs.
func ValidateVenue(v VenueConfig) error {
	names := make(map[string]bool, len(v.Sports))
	for _, s := range v.Sports {
		name := strings.ToLower(strings.TrimSpace(s.Name))
		if name == "" {
			return errors.New("venue sport with empty name")
		}
		if names[name] {
			return fmt.Errorf("duplicate sport found: %s", name)
		}
		names[name] = true
	}

	for _, pair := range v.Contending {
		if len(pair) != 2 {
			return fmt.Errorf("contending entry must name two sports, got %v", pair)
		}
		a := strings.ToLower(strings.TrimSpace(pair[0]))
		b := strings.ToLower(strings.TrimSpace(pair[1]))
		if a == b {
			return fmt.Errorf("sport %q cannot contend with itself", a)
		}
		if len(names) > 0 && (!names[a] || !names[b]) {
			return fmt.Errorf("contending pair %v references unknown sport", pair)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "slotbook"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.API.HTTP.ReadHeaderTimeoutMs == 0 {
		c.API.HTTP.ReadHeaderTimeoutMs = 5000
	}
	if c.API.HTTP.WriteTimeoutMs == 0 {
		c.API.HTTP.WriteTimeoutMs = 15000
	}
	if c.API.RateLimit.RPS > 0 && c.API.RateLimit.Burst == 0 {
		c.API.RateLimit.Burst = models.DefaultRateLimitBurst
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}

	if c.Storage.Driver == "" {
		c.Storage.Driver = models.StorageSQLite
	}
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	if c.Storage.Retries == 0 {
		c.Storage.Retries = models.DefaultStoreRetries
	}
	if c.Database.Path == "" && c.Storage.Driver == models.StorageSQLite {
		c.Database.Path = "data/slotbook.db"
	}
	if c.Database.Postgres.Port == 0 {
		c.Database.Postgres.Port = 5432
	}
	if c.Database.Postgres.SSLMode == "" {
		c.Database.Postgres.SSLMode = "disable"
	}
	if c.Database.Postgres.MigrationTable == "" {
		c.Database.Postgres.MigrationTable = "goose_db_version"
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "slotbook"
	}

	// Booking defaults
	if c.Booking.MinMobileDigits == 0 {
		c.Booking.MinMobileDigits = models.DefaultMinMobileDigits
	}
	if c.Booking.MaxAdvanceDays == nil {
		days := models.DefaultMaxAdvanceDays
		c.Booking.MaxAdvanceDays = &days
	}
	if c.Booking.Timezone == "" {
		c.Booking.Timezone = "Local"
	}

	if c.Events.AMQP.Exchange == "" {
		c.Events.AMQP.Exchange = "slotbook.events"
	}
	if c.Events.AMQP.QueueSize == 0 {
		c.Events.AMQP.QueueSize = models.DefaultEventQueueSize
	}
}
