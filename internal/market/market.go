// Package market holds the normalized trade records shared by ingestion, storage and analytics.
package market

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the aggressor side of a trade.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// SideFromMaker maps the feed's maker flag: maker-is-seller hits the bid.
func SideFromMaker(buyerIsMaker bool) Side {
	if buyerIsMaker {
		return Sell
	}
	return Buy
}

// ParseSide accepts the persisted representation.
func ParseSide(v string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(v))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	default:
		return "", fmt.Errorf("unknown side %q", v)
	}
}

// Tick is a single normalized trade. Values are never mutated after creation.
type Tick struct {
	Timestamp  time.Time
	Instrument string
	Price      decimal.Decimal
	Size       decimal.Decimal
	Side       Side
}

// Validate checks the invariants of a normalized tick.
func (t Tick) Validate() error {
	if t.Instrument == "" {
		return fmt.Errorf("tick: empty instrument")
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("tick %s: zero timestamp", t.Instrument)
	}
	if !t.Price.IsPositive() {
		return fmt.Errorf("tick %s: price must be positive, got %s", t.Instrument, t.Price)
	}
	if t.Size.IsNegative() {
		return fmt.Errorf("tick %s: size must be non-negative, got %s", t.Instrument, t.Size)
	}
	if t.Side != Buy && t.Side != Sell {
		return fmt.Errorf("tick %s: invalid side %q", t.Instrument, t.Side)
	}
	return nil
}

// PriceFloat returns the price as float64 for numeric work.
func (t Tick) PriceFloat() float64 {
	return t.Price.InexactFloat64()
}

// Bar is the last traded price inside one fixed-interval bucket.
type Bar struct {
	Timestamp  time.Time
	Instrument string
	Close      float64
}

// NormalizeInstrument lower-cases and trims an instrument identifier.
func NormalizeInstrument(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// NormalizeInstruments deduplicates identifiers while keeping their first-seen order.
func NormalizeInstruments(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		id := NormalizeInstrument(v)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// Closes extracts the close prices of a bar series.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
