package analytics

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pairwatch/internal/market"
)

func tickAt(ts time.Time, price float64, size float64, side market.Side) market.Tick {
	return market.Tick{
		Timestamp:  ts,
		Instrument: "btcusdt",
		Price:      decimal.NewFromFloat(price),
		Size:       decimal.NewFromFloat(size),
		Side:       side,
	}
}

func TestResampleLastPricePerBucket(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticks := []market.Tick{
		tickAt(base.Add(100*time.Millisecond), 10, 1, market.Buy),
		tickAt(base.Add(900*time.Millisecond), 11, 1, market.Buy),
		tickAt(base.Add(1200*time.Millisecond), 12, 1, market.Sell),
		// 12:00:02 and 12:00:03 are empty
		tickAt(base.Add(4*time.Second), 13, 1, market.Buy),
		tickAt(base.Add(4*time.Second+500*time.Millisecond), 14, 1, market.Buy),
	}

	bars := Resample(ticks, time.Second)
	if len(bars) != 3 {
		t.Fatalf("expected 3 bars, got %d: %+v", len(bars), bars)
	}
	want := []struct {
		ts    time.Time
		close float64
	}{
		{base, 11},
		{base.Add(time.Second), 12},
		{base.Add(4 * time.Second), 14},
	}
	for i, w := range want {
		if !bars[i].Timestamp.Equal(w.ts) || bars[i].Close != w.close {
			t.Fatalf("bar %d: expected %v/%v, got %v/%v", i, w.ts, w.close, bars[i].Timestamp, bars[i].Close)
		}
		if bars[i].Instrument != "btcusdt" {
			t.Fatalf("bar %d: instrument not carried", i)
		}
	}
}

func TestResampleDeterministic(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticks := make([]market.Tick, 0, 100)
	for i := 0; i < 100; i++ {
		ticks = append(ticks, tickAt(base.Add(time.Duration(i*37)*time.Second), float64(100+i%7), 1, market.Buy))
	}
	first := Resample(ticks, time.Minute)
	second := Resample(ticks, time.Minute)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("resample is not deterministic")
	}
	for i := 1; i < len(first); i++ {
		if !first[i].Timestamp.After(first[i-1].Timestamp) {
			t.Fatalf("bars not strictly ascending at %d", i)
		}
	}
}

func TestResampleEmptyInput(t *testing.T) {
	if bars := Resample(nil, time.Second); len(bars) != 0 {
		t.Fatalf("expected no bars, got %d", len(bars))
	}
	if bars := Resample([]market.Tick{tickAt(time.Now(), 1, 1, market.Buy)}, 0); len(bars) != 0 {
		t.Fatal("non-positive interval should produce no bars")
	}
}

func TestBucketStartEpochAligned(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 7, 31, 0, time.FixedZone("x", 3600))
	got := BucketStart(ts, 5*time.Minute)
	want := time.Date(2024, 5, 1, 11, 5, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v got %v", want, got)
	}
}

func TestResampleVolume(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	ticks := []market.Tick{
		tickAt(base, 10, 1.5, market.Buy),
		tickAt(base.Add(10*time.Second), 10, 2, market.Sell),
		tickAt(base.Add(2*time.Minute), 10, 3, market.Buy),
	}
	vols := ResampleVolume(ticks, time.Minute)
	if len(vols) != 2 {
		t.Fatalf("expected 2 volume bars, got %d", len(vols))
	}
	if !vols[0].Volume.Equal(decimal.NewFromFloat(3.5)) || !vols[1].Volume.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unexpected volumes %s %s", vols[0].Volume, vols[1].Volume)
	}
}

func TestAlignInnerJoin(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	at := func(s int) time.Time { return base.Add(time.Duration(s) * time.Second) }
	y := []market.Bar{{Timestamp: at(0), Close: 1}, {Timestamp: at(1), Close: 2}, {Timestamp: at(3), Close: 4}}
	x := []market.Bar{{Timestamp: at(1), Close: 20}, {Timestamp: at(2), Close: 30}, {Timestamp: at(3), Close: 40}}

	a := Align(y, x)
	if a.Len() != 2 {
		t.Fatalf("expected 2 aligned points, got %d", a.Len())
	}
	if a.Y[0] != 2 || a.X[0] != 20 || a.Y[1] != 4 || a.X[1] != 40 {
		t.Fatalf("unexpected alignment %+v", a)
	}
}
