// Package feed ingests trade events from an external stream and writes normalized ticks to the store.
package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pairwatch/internal/market"
)

var (
	// ErrMissingTimestamp marks a trade carrying neither trade time nor event time.
	ErrMissingTimestamp = errors.New("feed: trade has no timestamp")
	// ErrNotTrade is returned when a non-trade event is normalized.
	ErrNotTrade = errors.New("feed: event is not a trade")
)

const tradeEventType = "trade"

// Event is the closed set of inbound events: TradeEvent or OtherEvent.
type Event interface {
	isEvent()
}

// TradeEvent is a trade print as published by the exchange.
type TradeEvent struct {
	Symbol       string
	Price        string
	Quantity     string
	TradeTime    *int64
	EventTime    *int64
	BuyerIsMaker *bool
}

// OtherEvent is anything that is not a trade; it is dropped.
type OtherEvent struct {
	Type string
}

func (TradeEvent) isEvent() {}
func (OtherEvent) isEvent() {}

// encoding/json falls back to case-insensitive key matching, so every
// single-letter key the exchange sends in both cases needs its own field.
type wireEvent struct {
	Type         *string `json:"e"`
	EventTime    *int64  `json:"E"`
	TradeTime    *int64  `json:"T"`
	TradeID      int64   `json:"t"`
	Symbol       string  `json:"s"`
	Price        string  `json:"p"`
	Quantity     string  `json:"q"`
	BuyerIsMaker *bool   `json:"m"`
	Ignore       bool    `json:"M"`
}

type wireEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// Classify decodes a raw message, unwrapping combined-stream envelopes, into a tagged Event.
func Classify(raw []byte) (Event, error) {
	var env wireEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if len(env.Data) > 0 && env.Data[0] == '{' {
		raw = env.Data
	}

	var ev wireEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	if ev.Type == nil {
		return OtherEvent{}, nil
	}
	if *ev.Type != tradeEventType {
		return OtherEvent{Type: *ev.Type}, nil
	}
	return TradeEvent{
		Symbol:       ev.Symbol,
		Price:        ev.Price,
		Quantity:     ev.Quantity,
		TradeTime:    ev.TradeTime,
		EventTime:    ev.EventTime,
		BuyerIsMaker: ev.BuyerIsMaker,
	}, nil
}

// Normalize converts a trade into a Tick. Trade time is preferred over event time.
func Normalize(ev TradeEvent) (market.Tick, error) {
	instrument := market.NormalizeInstrument(ev.Symbol)
	if instrument == "" {
		return market.Tick{}, fmt.Errorf("trade without symbol")
	}

	var millis int64
	switch {
	case ev.TradeTime != nil && *ev.TradeTime > 0:
		millis = *ev.TradeTime
	case ev.EventTime != nil && *ev.EventTime > 0:
		millis = *ev.EventTime
	default:
		return market.Tick{}, ErrMissingTimestamp
	}

	price, err := decimal.NewFromString(ev.Price)
	if err != nil {
		return market.Tick{}, fmt.Errorf("parse price %q: %w", ev.Price, err)
	}
	size, err := decimal.NewFromString(ev.Quantity)
	if err != nil {
		return market.Tick{}, fmt.Errorf("parse quantity %q: %w", ev.Quantity, err)
	}
	if ev.BuyerIsMaker == nil {
		return market.Tick{}, fmt.Errorf("trade without maker flag")
	}

	tick := market.Tick{
		Timestamp:  time.UnixMilli(millis).UTC(),
		Instrument: instrument,
		Price:      price,
		Size:       size,
		Side:       market.SideFromMaker(*ev.BuyerIsMaker),
	}
	if err := tick.Validate(); err != nil {
		return market.Tick{}, err
	}
	return tick, nil
}

// Parse classifies and normalizes in one step. Non-trades return ErrNotTrade.
func Parse(raw []byte) (market.Tick, error) {
	ev, err := Classify(raw)
	if err != nil {
		return market.Tick{}, err
	}
	trade, ok := ev.(TradeEvent)
	if !ok {
		return market.Tick{}, ErrNotTrade
	}
	return Normalize(trade)
}
