package feed

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"pairwatch/internal/logging"
	"pairwatch/internal/metrics"
	"pairwatch/internal/storage"
)

// Gateway keeps a feed connection alive and appends every accepted trade to the store.
// It shares nothing with consumers except the store.
type Gateway struct {
	source      Source
	store       storage.TickStore
	instruments []string
	backoff     *Backoff
	logger      zerolog.Logger
}

// NewGateway wires a source to a store.
func NewGateway(source Source, store storage.TickStore, instruments []string, backoff *Backoff, logger zerolog.Logger) *Gateway {
	if backoff == nil {
		backoff = NewBackoff(time.Second, 30*time.Second, 1.8)
	}
	return &Gateway{
		source:      source,
		store:       store,
		instruments: instruments,
		backoff:     backoff,
		logger:      logging.Component(logger, "gateway"),
	}
}

// Run connects, consumes and reconnects until ctx is cancelled. It only returns ctx.Err().
func (g *Gateway) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		handle, err := g.source.Connect(ctx, g.instruments)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay := g.backoff.Next()
			g.logger.Warn().Err(err).Dur("retry_in", delay).Msg("feed connect failed")
			if err := g.wait(ctx, delay); err != nil {
				return err
			}
			metrics.FeedReconnects.Inc()
			continue
		}

		accepted := g.consume(ctx, handle)
		handle.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if accepted > 0 {
			g.backoff.Reset()
		}

		delay := g.backoff.Next()
		g.logger.Warn().Err(handle.Err()).Int("accepted", accepted).Dur("retry_in", delay).Msg("feed disconnected, reconnecting")
		if err := g.wait(ctx, delay); err != nil {
			return err
		}
		metrics.FeedReconnects.Inc()
	}
}

func (g *Gateway) consume(ctx context.Context, handle *Handle) int {
	accepted := 0
	for msg := range handle.Events() {
		if g.ingest(ctx, msg) {
			accepted++
		}
	}
	return accepted
}

// ingest parses one raw message and appends it. Malformed and non-trade events are
// dropped with a diagnostic; store failures are logged and counted.
func (g *Gateway) ingest(ctx context.Context, msg []byte) bool {
	tick, err := Parse(msg)
	if err != nil {
		if errors.Is(err, ErrNotTrade) {
			metrics.EventsDropped.WithLabelValues("non_trade").Inc()
			g.logger.Debug().Msg("dropping non-trade event")
			return false
		}
		reason := "malformed"
		if errors.Is(err, ErrMissingTimestamp) {
			reason = "missing_timestamp"
		}
		metrics.EventsDropped.WithLabelValues(reason).Inc()
		g.logger.Warn().Err(err).Str("reason", reason).Msg("dropping feed event")
		return false
	}

	if err := g.store.Append(ctx, tick); err != nil {
		metrics.StoreErrors.Inc()
		g.logger.Error().Err(err).Str("instrument", tick.Instrument).Msg("failed to append tick")
		return false
	}
	metrics.TicksIngested.WithLabelValues(tick.Instrument).Inc()
	g.logger.Debug().
		Str("instrument", tick.Instrument).
		Str("price", tick.Price.String()).
		Str("size", tick.Size.String()).
		Str("side", string(tick.Side)).
		Time("ts", tick.Timestamp).
		Msg("tick stored")
	return true
}

func (g *Gateway) wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
