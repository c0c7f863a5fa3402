// Package postgres implements repository.Store on PostgreSQL through sqlx.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" driver

	"github.com/okian/paddock/internal/adapters/repository"
	"github.com/okian/paddock/internal/domain/model"
	"github.com/okian/paddock/pkg/metrics"
)

//go:embed schema.sql
var schema string

// Default connection settings.
const (
	DefaultDriver          = "pgx"
	DefaultQueryTimeout    = 5 * time.Second
	DefaultMaxOpenConns    = 10
	DefaultMaxIdleConns    = 5
	DefaultConnMaxLifetime = 30 * time.Minute
)

// ErrUnsupportedDriver is returned for SQL drivers other than pgx and postgres.
var ErrUnsupportedDriver = errors.New("unsupported sql driver")

// Config holds database connection settings.
type Config struct {
	Driver          string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	QueryTimeout    time.Duration
}

// DefaultConfig returns connection defaults for the given DSN.
func DefaultConfig(dsn string) Config {
	return Config{
		Driver:          DefaultDriver,
		DSN:             dsn,
		MaxOpenConns:    DefaultMaxOpenConns,
		MaxIdleConns:    DefaultMaxIdleConns,
		ConnMaxLifetime: DefaultConnMaxLifetime,
		QueryTimeout:    DefaultQueryTimeout,
	}
}

// Store is the PostgreSQL-backed repository.Store.
type Store struct {
	db      *sqlx.DB
	timeout time.Duration
}

var _ repository.Store = (*Store)(nil)

// Open connects with cfg, tunes the pool and verifies connectivity.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	switch cfg.Driver {
	case "pgx", "postgres":
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDriver, cfg.Driver)
	}
	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	s := New(db, cfg.QueryTimeout)
	if err := s.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool.
func New(db *sqlx.DB, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Store{db: db, timeout: timeout}
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range statements(schema) {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func statements(script string) []string {
	parts := strings.Split(script, ";\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WithPairTx implements repository.Store. The pair is serialised across
// processes with a transaction-scoped advisory lock.
func (s *Store) WithPairTx(ctx context.Context, key model.PairKey, fn func(tx repository.PairTx) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	defer observe("pair_tx", time.Now())

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pair tx %s: %w", key, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.String()); err != nil {
		return fmt.Errorf("lock pair %s: %w", key, err)
	}
	if err = fn(&pairTx{tx: tx, key: key}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit pair tx %s: %w", key, err)
	}
	return nil
}

// Ping implements repository.Store.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

// Close implements repository.Store.
func (s *Store) Close() error {
	return s.db.Close()
}

func observe(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}
