package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pairwatch/internal/market"
)

const (
	createTicksSQL = `CREATE TABLE IF NOT EXISTS ticks (
        id     BIGSERIAL PRIMARY KEY,
        ts     TEXT NOT NULL,
        symbol TEXT NOT NULL,
        price  DOUBLE PRECISION NOT NULL,
        size   DOUBLE PRECISION NOT NULL,
        side   TEXT NOT NULL
    );`

	createTicksIndexSQL = `CREATE INDEX IF NOT EXISTS ticks_symbol_idx ON ticks (symbol);`

	insertTickSQL = `INSERT INTO ticks (ts, symbol, price, size, side)
    VALUES ($1,$2,$3,$4,$5);`

	// ts is free-form text; ordering and the since filter are applied after coercion.
	listTicksSQL = `SELECT ts, symbol, price, size, side
    FROM ticks
    WHERE symbol = $1;`
)

// PGStore keeps the tick log in a PostgreSQL table.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wires a pgx pool into a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Close releases the underlying pool resources.
func (s *PGStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

func (s *PGStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the ticks table when missing.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createTicksSQL); err != nil {
		return fmt.Errorf("create ticks table: %w", err)
	}
	if _, err := pool.Exec(ctx, createTicksIndexSQL); err != nil {
		return fmt.Errorf("create ticks index: %w", err)
	}
	return nil
}

// Append inserts a tick row.
func (s *PGStore) Append(ctx context.Context, tick market.Tick) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if err := validateTick(tick); err != nil {
		return err
	}

	rec := RecordFromTick(tick)
	if _, execErr := pool.Exec(ctx, insertTickSQL, rec.TS, rec.Instrument, rec.Price, rec.Size, rec.Side); execErr != nil {
		return fmt.Errorf("insert tick: %w", execErr)
	}
	return nil
}

// Query lists the ticks for one instrument at or after since, ascending by timestamp.
func (s *PGStore) Query(ctx context.Context, instrument string, since *time.Time) ([]market.Tick, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	instrument = market.NormalizeInstrument(instrument)
	rows, queryErr := pool.Query(ctx, listTicksSQL, instrument)
	if queryErr != nil {
		return nil, fmt.Errorf("list ticks: %w", queryErr)
	}
	defer rows.Close()

	records := make([]TickRecord, 0, 1024)
	for rows.Next() {
		var rec TickRecord
		if scanErr := rows.Scan(&rec.TS, &rec.Instrument, &rec.Price, &rec.Size, &rec.Side); scanErr != nil {
			return nil, fmt.Errorf("scan tick: %w", scanErr)
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return collect(records, instrument, since), nil
}

var _ TickStore = (*PGStore)(nil)
