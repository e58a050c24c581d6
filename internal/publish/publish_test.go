package publish

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pairwatch/internal/analytics"
	"pairwatch/internal/service"
)

func sampleSnapshot() service.Snapshot {
	return service.Snapshot{
		At:    time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		State: service.StateReady,
		Instruments: []service.InstrumentSnapshot{{
			Instrument: "btcusdt",
			State:      service.StateReady,
			Ticks:      120,
			Bars:       60,
			LastPrice:  analytics.Defined(64000.5),
			ZScore:     analytics.Defined(-1.25),
			BuyVolume:  decimal.RequireFromString("1.5"),
			SellVolume: decimal.RequireFromString("0.5"),
			NetFlow:    decimal.RequireFromString("1"),
		}},
		Pair: &service.PairSnapshot{
			Label:        "btcusdt/ethusdt",
			State:        service.StateReady,
			Observations: 60,
			HedgeRatio:   3.01,
			ADFPValue:    0.01,
			Stationary:   true,
		},
	}
}

func TestLatest(t *testing.T) {
	l := NewLatest()
	if _, ok := l.Get(); ok {
		t.Fatal("empty holder should report no snapshot")
	}
	snap := sampleSnapshot()
	if err := l.Publish(context.Background(), snap); err != nil {
		t.Fatalf("publish: %v", err)
	}
	got, ok := l.Get()
	if !ok || !got.At.Equal(snap.At) || got.Instruments[0].Instrument != "btcusdt" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
}

func TestKeys(t *testing.T) {
	if got := snapshotKey("pw"); got != "pw:snapshot" {
		t.Fatalf("unexpected snapshot key %s", got)
	}
	if got := instrumentKey("pw", "btcusdt"); got != "pw:instrument:btcusdt" {
		t.Fatalf("unexpected instrument key %s", got)
	}
	if got := pairKey("pw", "btcusdt/ethusdt"); got != "pw:pair:btcusdt/ethusdt" {
		t.Fatalf("unexpected pair key %s", got)
	}
}

func TestInstrumentFields(t *testing.T) {
	snap := sampleSnapshot()
	fields := instrumentFields(snap, snap.Instruments[0])
	want := map[string]string{
		"state":      "ready",
		"ticks":      "120",
		"last_price": "64000.5",
		"zscore":     "-1.25",
		"mean":       "",
		"net_flow":   "1",
	}
	for k, v := range want {
		if fields[k] != v {
			t.Fatalf("field %s: expected %q got %q", k, v, fields[k])
		}
	}
}

func TestPairFields(t *testing.T) {
	snap := sampleSnapshot()
	fields := pairFields(snap, snap.Pair)
	if fields["hedge_ratio"] != "3.01" || fields["stationary"] != "true" || fields["spread_zscore"] != "" {
		t.Fatalf("unexpected pair fields %v", fields)
	}
}
