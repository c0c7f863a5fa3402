// Package config defines service configuration structures and loading hooks.
//
// Configuration is layered: defaults from New, then an optional YAML file
// named by PADDOCK_CONFIG, then PADDOCK_* environment variables.
package config

import (
	"fmt"
	"time"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	Store    StoreConfig    `koanf:"store"`
	Redis    RedisConfig    `koanf:"redis"`
	Schedule ScheduleConfig `koanf:"schedule"`
	Batch    BatchConfig    `koanf:"batch"`
	Rules    RulesConfig    `koanf:"rules"`
}

// StoreConfig selects and tunes the persistence backend.
type StoreConfig struct {
	// Driver is memory or postgres.
	Driver string `koanf:"driver"`
	// SQLDriver is the database/sql driver for postgres: pgx or postgres (lib/pq).
	SQLDriver       string        `koanf:"sql_driver"`
	DSN             string        `koanf:"dsn"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	QueryTimeout    time.Duration `koanf:"query_timeout"`
	// Migrate applies the schema on startup.
	Migrate bool `koanf:"migrate"`
}

// RedisConfig configures the pair-scored notifier.
type RedisConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Addr            string        `koanf:"addr"`
	Password        string        `koanf:"password"`
	DB              int           `koanf:"db"`
	Channel         string        `koanf:"channel"`
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// ScheduleConfig configures the periodic batch.
type ScheduleConfig struct {
	Enabled bool `koanf:"enabled"`
	// Spec is a cron expression or descriptor such as "@every 5m".
	Spec string `koanf:"spec"`
}

// BatchConfig tunes ScorePendingResults.
type BatchConfig struct {
	Workers        int           `koanf:"workers"`
	QueueSize      int           `koanf:"queue_size"`
	PairsPerSecond float64       `koanf:"pairs_per_second"`
	PairTimeout    time.Duration `koanf:"pair_timeout"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
		Addr:      ":9080",
		Store: StoreConfig{
			Driver:          StoreMemory,
			SQLDriver:       "pgx",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			QueryTimeout:    5 * time.Second,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			Channel:         "paddock:scores",
			BreakerFailures: 3,
			BreakerTimeout:  30 * time.Second,
		},
		Schedule: ScheduleConfig{
			Spec: "@every 5m",
		},
		Batch: BatchConfig{
			Workers:     4,
			QueueSize:   256,
			PairTimeout: 30 * time.Second,
		},
		Rules: DefaultRules(),
	}
}

// Validate checks cross-field constraints. Rule content is validated when
// the registry is built.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format must be text or json, got %q", ErrInvalidConfig, c.LogFormat)
	case c.Batch.Workers < 1:
		return fmt.Errorf("%w: batch.workers must be positive", ErrInvalidConfig)
	case c.Batch.QueueSize < 1:
		return fmt.Errorf("%w: batch.queue_size must be positive", ErrInvalidConfig)
	case c.Batch.PairsPerSecond < 0:
		return fmt.Errorf("%w: batch.pairs_per_second must not be negative", ErrInvalidConfig)
	case c.Schedule.Enabled && c.Schedule.Spec == "":
		return fmt.Errorf("%w: schedule.spec is required when the schedule is enabled", ErrInvalidConfig)
	case c.Redis.Enabled && c.Redis.Addr == "":
		return fmt.Errorf("%w: redis.addr is required when redis is enabled", ErrInvalidConfig)
	case c.Rules.Version == "":
		return fmt.Errorf("%w: rules.version must not be empty", ErrInvalidConfig)
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("%w: store.dsn is required for the postgres driver", ErrInvalidConfig)
		}
		if c.Store.SQLDriver != "pgx" && c.Store.SQLDriver != "postgres" {
			return fmt.Errorf("%w: store.sql_driver must be pgx or postgres, got %q", ErrInvalidConfig, c.Store.SQLDriver)
		}
	default:
		return fmt.Errorf("%w: store.driver must be memory or postgres, got %q", ErrInvalidConfig, c.Store.Driver)
	}
	return nil
}
