// Package config loads runtime configuration from environment variables.
package config

import (
	"errors"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration shared by the server and the worker.
type Config struct {
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPAddr         string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPReadTimeout  time.Duration `envconfig:"HTTP_READ_TIMEOUT" default:"15s"`
	HTTPWriteTimeout time.Duration `envconfig:"HTTP_WRITE_TIMEOUT" default:"30s"`
	HTTPIdleTimeout  time.Duration `envconfig:"HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout  time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"5"`
	DBAppName   string `envconfig:"DB_APPLICATION_NAME" default:"lotkeeper"`

	RedisAddr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	JWTSecret string `envconfig:"JWT_SECRET"`
	JWTIssuer string `envconfig:"JWT_ISSUER" default:"lotkeeper"`

	Allocation AllocationConfig
	Worker     WorkerConfig

	StrategyCacheTTL time.Duration `envconfig:"STRATEGY_CACHE_TTL" default:"5m"`
	// CatalogCodeRange is how many catalog codes one instance reserves at
	// a time. Zero numbers every code in its own statement.
	CatalogCodeRange int64 `envconfig:"CATALOG_CODE_RANGE" default:"20"`
	IdempotencyTTL   time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
}

// AllocationConfig tunes withdrawal behaviour.
type AllocationConfig struct {
	MaxRetries   int  `envconfig:"ALLOCATION_MAX_RETRIES" default:"3"`
	AllowPartial bool `envconfig:"ALLOCATION_ALLOW_PARTIAL" default:"true"`
}

// WorkerConfig tunes the background worker.
type WorkerConfig struct {
	Concurrency      int    `envconfig:"WORKER_CONCURRENCY" default:"5"`
	MetricsAddr      string `envconfig:"WORKER_METRICS_ADDR" default:":9090"`
	OutboxBatchSize  int    `envconfig:"OUTBOX_BATCH_SIZE" default:"100"`
	ExpiryWindowDays int    `envconfig:"EXPIRY_WINDOW_DAYS" default:"7"`
	LowStockRule     string `envconfig:"LOW_STOCK_RULE" default:"min_stock > 0.0 && on_hand < min_stock"`

	LowStockCron         string `envconfig:"LOW_STOCK_CRON" default:"0 * * * *"`
	ExpiryCron           string `envconfig:"EXPIRY_CRON" default:"0 8 * * *"`
	LowStockReminderCron string `envconfig:"LOW_STOCK_REMINDER_CRON" default:"0 10 * * *"`
	OutboxRelayCron      string `envconfig:"OUTBOX_RELAY_CRON" default:"@every 1m"`
	CleanupCron          string `envconfig:"CLEANUP_CRON" default:"30 3 * * *"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values envconfig cannot express with tags.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return errors.New("DATABASE_URL must be provided")
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be provided in production")
	}
	if c.Allocation.MaxRetries < 1 {
		return errors.New("ALLOCATION_MAX_RETRIES must be at least 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return errors.New("DB_MIN_CONNS must not exceed DB_MAX_CONNS")
	}
	if c.CatalogCodeRange < 0 {
		return errors.New("CATALOG_CODE_RANGE must not be negative")
	}
	if c.Worker.ExpiryWindowDays < 1 {
		return errors.New("EXPIRY_WINDOW_DAYS must be positive")
	}
	return nil
}

// IsProduction returns true when the application runs in production.
func (c *Config) IsProduction() bool {
	return c != nil && c.AppEnv == "production"
}

// ExpiryWindow returns the look-ahead used by the expiry scan.
func (c *Config) ExpiryWindow() time.Duration {
	return time.Duration(c.Worker.ExpiryWindowDays) * 24 * time.Hour
}
