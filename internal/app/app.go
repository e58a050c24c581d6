package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"pairwatch/internal/alerting"
	"pairwatch/internal/config"
	"pairwatch/internal/feed"
	"pairwatch/internal/market"
	"pairwatch/internal/metrics"
	"pairwatch/internal/publish"
	"pairwatch/internal/scheduler"
	"pairwatch/internal/service"
	"pairwatch/internal/storage"
	"pairwatch/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Latest *publish.Latest

	ingestOnce sync.Once
	ingestDone chan struct{}
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{
		Config: cfg,
		Logger: logger.With().Str("component", "app").Logger(),
		Latest: publish.NewLatest(),
	}
}

func (a *App) instruments() []string {
	return market.NormalizeInstruments(a.Config.Feed.Symbols)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return alerting.NewLogNotifier(a.Logger)
}

func (a *App) newSource() feed.Source {
	cfg := a.Config.Feed
	if strings.EqualFold(cfg.Provider, config.ProviderStub) {
		return feed.NewStubSource(cfg.StubInterval)
	}
	return feed.NewWSSource(feed.WSOptions{
		URL:              cfg.URL,
		HandshakeTimeout: cfg.HandshakeTimeout,
		ReadTimeout:      cfg.ReadTimeout,
		PingInterval:     cfg.PingInterval,
	}, a.Logger)
}

func (a *App) openStore(ctx context.Context) (storage.TickStore, func(), error) {
	store, err := storage.Open(ctx, a.Config.Storage)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := store.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("close tick store")
		}
	}
	return store, closer, nil
}

func (a *App) newService(store storage.TickStore, sched *scheduler.Scheduler, publishers []service.Publisher) (*service.Service, error) {
	opts, err := service.OptionsFromConfig(a.Config)
	if err != nil {
		return nil, err
	}
	return service.New(opts, store, sched, a.newNotifier(), publishers, a.Logger), nil
}

// StartIngestion launches the feed gateway. Only the first call has any effect, so a
// process never runs two writers against the same store.
func (a *App) StartIngestion(ctx context.Context, store storage.TickStore) <-chan struct{} {
	a.ingestOnce.Do(func() {
		a.ingestDone = make(chan struct{})
		cfg := a.Config.Feed
		backoff := feed.NewBackoff(cfg.BackoffInitial, cfg.BackoffMax, cfg.BackoffMultiplier)
		gateway := feed.NewGateway(a.newSource(), store, a.instruments(), backoff, a.Logger)

		go func() {
			defer close(a.ingestDone)
			if err := gateway.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				a.Logger.Error().Err(err).Msg("ingestion stopped")
			}
		}()
		a.Logger.Info().Str("provider", cfg.Provider).Strs("instruments", a.instruments()).Msg("ingestion started")
	})
	return a.ingestDone
}

// Run ingests the feed and refreshes signals until interrupted.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	if a.Config.Metrics.Enabled {
		srv := metrics.Serve(a.Config.Metrics.Addr, a.Logger)
		a.Logger.Info().Str("addr", a.Config.Metrics.Addr).Msg("metrics endpoint listening")
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	publishers := []service.Publisher{a.Latest}
	if a.Config.Redis.Enabled {
		rdb, err := publish.NewRedis(ctx, a.Config.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		publishers = append(publishers, rdb)
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Refresh.Interval,
		StartupDelay: a.Config.Refresh.StartupDelay,
	}, a.Logger)
	svc, err := a.newService(store, sched, publishers)
	if err != nil {
		return err
	}

	ingestDone := a.StartIngestion(ctx, store)

	a.Logger.Info().
		Str("version", version.String()).
		Str("timeframe", a.Config.Refresh.Timeframe).
		Int("window", a.Config.Refresh.EffectiveWindow()).
		Dur("interval", a.Config.Refresh.Interval).
		Msg("starting refresh loop")
	err = svc.Run(ctx)

	cancel()
	<-ingestDone

	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return fmt.Errorf("refresh loop: %w", err)
	}
	a.Logger.Info().Msg("pairwatch stopped")
	return nil
}

// SnapshotOptions configure the snapshot command.
type SnapshotOptions struct {
	FromRedis bool
}

// TicksOptions configure the ticks command.
type TicksOptions struct {
	Instrument string
	Since      time.Duration
	Limit      int
}

// ExportOptions hold parameters for exporting aligned series.
type ExportOptions struct {
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
