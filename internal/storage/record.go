package storage

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"pairwatch/internal/market"
)

// TickRecord is the persisted row: (ts, instrument, price, size, side).
type TickRecord struct {
	TS         string
	Instrument string
	Price      float64
	Size       float64
	Side       string
}

// RecordFromTick converts a tick into its persisted form.
func RecordFromTick(t market.Tick) TickRecord {
	return TickRecord{
		TS:         FormatTimestamp(t.Timestamp),
		Instrument: t.Instrument,
		Price:      t.Price.InexactFloat64(),
		Size:       t.Size.InexactFloat64(),
		Side:       string(t.Side),
	}
}

// Tick restores a tick from a persisted row, coercing the timestamp to UTC.
func (r TickRecord) Tick() (market.Tick, error) {
	ts, err := ParseTimestamp(r.TS)
	if err != nil {
		return market.Tick{}, err
	}
	side, err := market.ParseSide(r.Side)
	if err != nil {
		return market.Tick{}, err
	}
	return market.Tick{
		Timestamp:  ts,
		Instrument: r.Instrument,
		Price:      decimal.NewFromFloat(r.Price),
		Size:       decimal.NewFromFloat(r.Size),
		Side:       side,
	}, nil
}

func (r TickRecord) fields() []string {
	return []string{
		r.TS,
		r.Instrument,
		strconv.FormatFloat(r.Price, 'f', -1, 64),
		strconv.FormatFloat(r.Size, 'f', -1, 64),
		r.Side,
	}
}

func recordFromFields(fields []string) (TickRecord, error) {
	if len(fields) != 5 {
		return TickRecord{}, fmt.Errorf("expected 5 fields, got %d", len(fields))
	}
	price, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return TickRecord{}, fmt.Errorf("parse price: %w", err)
	}
	size, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return TickRecord{}, fmt.Errorf("parse size: %w", err)
	}
	return TickRecord{TS: fields[0], Instrument: fields[1], Price: price, Size: size, Side: fields[4]}, nil
}
