package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pairwatch/internal/config"
	"pairwatch/internal/market"
)

var (
	// ErrNotConfigured indicates the storage backend was not initialised.
	ErrNotConfigured = errors.New("storage: backend not configured")
	// ErrInvalidTick is returned by Append for ticks violating the data model.
	ErrInvalidTick = errors.New("storage: invalid tick")
)

// TickStore is the append-only tick log shared by the ingestion and refresh loops.
// Append may run concurrently with Query; Query returns ticks ascending by timestamp.
type TickStore interface {
	Append(ctx context.Context, tick market.Tick) error
	Query(ctx context.Context, instrument string, since *time.Time) ([]market.Tick, error)
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (TickStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case config.DriverFile, "":
		return OpenFileLog(cfg.Path, cfg.Fsync)
	case config.DriverPostgres:
		pool, err := NewPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		store := NewPGStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// NewPool configures a PostgreSQL connection pool from runtime settings.
func NewPool(ctx context.Context, cfg config.StorageConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.dsn is required for the postgres driver")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	return pool, nil
}

func validateTick(tick market.Tick) error {
	if err := tick.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTick, err)
	}
	return nil
}

// collect converts persisted rows into ticks for one instrument, dropping rows whose
// timestamp or fields cannot be parsed, then orders the result by time.
func collect(records []TickRecord, instrument string, since *time.Time) []market.Tick {
	ticks := make([]market.Tick, 0, len(records))
	for _, rec := range records {
		if market.NormalizeInstrument(rec.Instrument) != instrument {
			continue
		}
		tick, err := rec.Tick()
		if err != nil {
			continue
		}
		tick.Instrument = instrument
		if since != nil && tick.Timestamp.Before(*since) {
			continue
		}
		ticks = append(ticks, tick)
	}
	sort.SliceStable(ticks, func(i, j int) bool {
		return ticks[i].Timestamp.Before(ticks[j].Timestamp)
	})
	return ticks
}
