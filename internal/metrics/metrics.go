// Package metrics exposes Prometheus instruments for ingestion and refresh.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	TicksIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pairwatch_ticks_ingested_total", Help: "Ticks appended to the store"},
		[]string{"instrument"},
	)
	EventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pairwatch_events_dropped_total", Help: "Feed events dropped before storage"},
		[]string{"reason"},
	)
	StoreErrors = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pairwatch_store_errors_total", Help: "Tick store append failures"},
	)
	FeedReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "pairwatch_feed_reconnects_total", Help: "Feed connection attempts after a failure"},
	)
	RefreshCycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "pairwatch_refresh_cycles_total", Help: "Refresh cycles by outcome"},
		[]string{"status"},
	)
	LatestZScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "pairwatch_price_zscore", Help: "Latest rolling z-score of the bar close"},
		[]string{"instrument"},
	)
	PairHedgeRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "pairwatch_pair_hedge_ratio", Help: "OLS hedge ratio of the pair"},
		[]string{"pair"},
	)
	PairSpreadZScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "pairwatch_pair_spread_zscore", Help: "Latest spread z-score of the pair"},
		[]string{"pair"},
	)
	PairADFPValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "pairwatch_pair_adf_pvalue", Help: "ADF p-value of the pair spread"},
		[]string{"pair"},
	)
)

func init() {
	prometheus.MustRegister(
		TicksIngested,
		EventsDropped,
		StoreErrors,
		FeedReconnects,
		RefreshCycles,
		LatestZScore,
		PairHedgeRatio,
		PairSpreadZScore,
		PairADFPValue,
	)
}

// Serve starts the /metrics endpoint in the background.
func Serve(addr string, logger zerolog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
		}
	}()
	return srv
}
