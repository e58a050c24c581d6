// Package service is the refresh orchestrator: it reads recent ticks, derives bars and
// signals, and hands the resulting Snapshot to its consumers.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"pairwatch/internal/alerting"
	"pairwatch/internal/analytics"
	"pairwatch/internal/config"
	"pairwatch/internal/logging"
	"pairwatch/internal/market"
	"pairwatch/internal/metrics"
	"pairwatch/internal/scheduler"
	"pairwatch/internal/storage"
)

// Publisher receives every snapshot a cycle produces.
type Publisher interface {
	Publish(ctx context.Context, snap Snapshot) error
}

// Options parameterise a refresh cycle.
type Options struct {
	Instruments     []string
	Timeframe       time.Duration
	Window          int
	CorrWindow      int
	Lookback        time.Duration
	VolumeWindow    time.Duration
	AlertsEnabled   bool
	ZScoreThreshold float64
	AlertCooldown   time.Duration
	Now             func() time.Time
}

// OptionsFromConfig resolves timeframe and effective window from configuration.
func OptionsFromConfig(cfg *config.Config) (Options, error) {
	tf, err := cfg.Refresh.TimeframeDuration()
	if err != nil {
		return Options{}, err
	}
	return Options{
		Instruments:     market.NormalizeInstruments(cfg.Feed.Symbols),
		Timeframe:       tf,
		Window:          cfg.Refresh.EffectiveWindow(),
		CorrWindow:      cfg.Refresh.CorrWindow,
		Lookback:        cfg.Refresh.Lookback,
		VolumeWindow:    cfg.Refresh.VolumeWindow,
		AlertsEnabled:   cfg.Alerting.Enabled,
		ZScoreThreshold: cfg.Alerting.ZScoreThreshold,
		AlertCooldown:   cfg.Alerting.Cooldown,
	}, nil
}

// Service orchestrates query, resampling, statistics, publication and alerting.
type Service struct {
	opts       Options
	store      storage.TickStore
	scheduler  *scheduler.Scheduler
	publishers []Publisher
	notifier   alerting.Notifier
	cooldown   *alerting.Cooldown
	logger     zerolog.Logger
}

// New constructs the refresh service. sched and notifier may be nil.
func New(opts Options, store storage.TickStore, sched *scheduler.Scheduler, notifier alerting.Notifier, publishers []Publisher, logger zerolog.Logger) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.CorrWindow <= 0 {
		opts.CorrWindow = 60
	}
	if opts.VolumeWindow <= 0 {
		opts.VolumeWindow = 5 * time.Minute
	}
	opts.Instruments = market.NormalizeInstruments(opts.Instruments)

	return &Service{
		opts:       opts,
		store:      store,
		scheduler:  sched,
		publishers: publishers,
		notifier:   notifier,
		cooldown:   alerting.NewCooldown(opts.AlertCooldown),
		logger:     logging.Component(logger, "service"),
	}
}

// Run drives Cycle through the scheduler until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, s.Cycle)
}

// Cycle is one scheduled iteration: refresh, then publish and alert. A failed refresh
// leaves consumers holding the previous snapshot.
func (s *Service) Cycle(ctx context.Context, _ time.Time) error {
	snap, err := s.Refresh(ctx)
	if err != nil {
		metrics.RefreshCycles.WithLabelValues("error").Inc()
		return fmt.Errorf("refresh: %w", err)
	}
	metrics.RefreshCycles.WithLabelValues(string(snap.State)).Inc()

	s.publish(ctx, snap)
	s.observe(snap)
	s.alert(ctx, snap)

	event := s.logger.Info().
		Str("state", string(snap.State)).
		Int("instruments", len(snap.Instruments))
	if snap.Pair != nil {
		event = event.Str("pair", snap.Pair.Label).
			Float64("hedge_ratio", snap.Pair.HedgeRatio).
			Float64("adf_pvalue", snap.Pair.ADFPValue).
			Bool("stationary", snap.Pair.Stationary)
	}
	if snap.Ready() {
		event.Msg("refresh cycle complete")
	} else {
		event.Msg("awaiting data")
	}
	return nil
}

// Refresh computes a snapshot from the ticks inside the lookback horizon. Only store
// failures are returned; short history yields an awaiting-data snapshot.
func (s *Service) Refresh(ctx context.Context) (Snapshot, error) {
	now := s.opts.Now().UTC()
	since := now.Add(-s.opts.Lookback)

	snap := Snapshot{
		At:          now,
		Timeframe:   s.opts.Timeframe.String(),
		Window:      s.opts.Window,
		Lookback:    s.opts.Lookback.String(),
		State:       StateReady,
		Instruments: make([]InstrumentSnapshot, 0, len(s.opts.Instruments)),
	}

	for _, inst := range s.opts.Instruments {
		var sincePtr *time.Time
		if s.opts.Lookback > 0 {
			sincePtr = &since
		}
		ticks, err := s.store.Query(ctx, inst, sincePtr)
		if err != nil {
			return Snapshot{}, fmt.Errorf("query %s: %w", inst, err)
		}
		is := s.instrument(inst, ticks)
		if is.State != StateReady {
			snap.State = StateAwaitingData
		}
		snap.Instruments = append(snap.Instruments, is)
	}

	if len(snap.Instruments) >= 2 {
		y, x := snap.Instruments[0], snap.Instruments[1]
		aligned := analytics.Align(y.Series, x.Series)
		sig := analytics.ComputePair(aligned, s.opts.Window, s.opts.CorrWindow)
		snap.Pair = pairSnapshot(y.Instrument, x.Instrument, aligned, sig)
		if snap.Pair.State != StateReady {
			snap.State = StateAwaitingData
		}
	}

	return snap, nil
}

func (s *Service) instrument(id string, ticks []market.Tick) InstrumentSnapshot {
	bars := analytics.Resample(ticks, s.opts.Timeframe)
	closes := market.Closes(bars)
	rolling := analytics.Rolling(closes, s.opts.Window)
	flow := analytics.Flow(ticks, s.opts.VolumeWindow)

	is := InstrumentSnapshot{
		Instrument: id,
		State:      StateAwaitingData,
		Ticks:      len(ticks),
		Bars:       len(bars),
		Mean:       analytics.Last(rolling.Mean),
		Std:        analytics.Last(rolling.Std),
		ZScore:     analytics.Last(rolling.ZScore),
		BuyVolume:  flow.BuyVolume,
		SellVolume: flow.SellVolume,
		NetFlow:    flow.NetFlow(),
		Series:     bars,
		Rolling:    rolling,
		Volume:     analytics.ResampleVolume(ticks, s.opts.Timeframe),
	}
	if n := len(ticks); n > 0 {
		last := ticks[n-1]
		is.LastPrice = analytics.Defined(last.PriceFloat())
		ts := last.Timestamp
		is.LastTradeAt = &ts
	}
	if len(bars) >= s.opts.Window && s.opts.Window > 0 {
		is.State = StateReady
	}
	return is
}

func (s *Service) publish(ctx context.Context, snap Snapshot) {
	for _, p := range s.publishers {
		if err := p.Publish(ctx, snap); err != nil {
			s.logger.Error().Err(err).Msg("failed to publish snapshot")
		}
	}
}

func (s *Service) observe(snap Snapshot) {
	for _, inst := range snap.Instruments {
		if inst.ZScore.OK {
			metrics.LatestZScore.WithLabelValues(inst.Instrument).Set(inst.ZScore.V)
		}
	}
	if p := snap.Pair; p != nil && p.State == StateReady {
		metrics.PairHedgeRatio.WithLabelValues(p.Label).Set(p.HedgeRatio)
		metrics.PairADFPValue.WithLabelValues(p.Label).Set(p.ADFPValue)
		if p.SpreadZScore.OK {
			metrics.PairSpreadZScore.WithLabelValues(p.Label).Set(p.SpreadZScore.V)
		}
	}
}

// alert notifies on |z| breaches for prices and the pair spread, once per cooldown per subject.
func (s *Service) alert(ctx context.Context, snap Snapshot) {
	if !s.opts.AlertsEnabled || s.notifier == nil {
		return
	}

	var notes []alerting.Notification
	for _, inst := range snap.Instruments {
		if !inst.ZScore.OK || !alerting.Breached(inst.ZScore.V, s.opts.ZScoreThreshold) {
			continue
		}
		notes = append(notes, alerting.Notification{
			At:        snap.At,
			Subject:   inst.Instrument,
			Kind:      "price",
			Value:     inst.LastPrice.V,
			ZScore:    inst.ZScore.V,
			Threshold: s.opts.ZScoreThreshold,
			Direction: alerting.Direction(inst.ZScore.V),
		})
	}
	if p := snap.Pair; p != nil && p.SpreadZScore.OK && alerting.Breached(p.SpreadZScore.V, s.opts.ZScoreThreshold) {
		notes = append(notes, alerting.Notification{
			At:        snap.At,
			Subject:   p.Label,
			Kind:      "spread",
			Value:     p.Signal.Spread[len(p.Signal.Spread)-1],
			ZScore:    p.SpreadZScore.V,
			Threshold: s.opts.ZScoreThreshold,
			Direction: alerting.Direction(p.SpreadZScore.V),
			Extra:     fmt.Sprintf("Hedge ratio %.4f, ADF p-value %.4f", p.HedgeRatio, p.ADFPValue),
		})
	}

	for _, note := range notes {
		if !s.cooldown.Allow(note.Kind+":"+note.Subject, snap.At) {
			continue
		}
		if err := s.notifier.Notify(ctx, note); err != nil {
			s.logger.Error().Err(err).Str("subject", note.Subject).Msg("failed to dispatch alert")
		}
	}
}
