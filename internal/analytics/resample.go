package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"pairwatch/internal/market"
)

// BucketStart aligns t to the interval grid anchored at the Unix epoch.
func BucketStart(t time.Time, interval time.Duration) time.Time {
	ns := t.UnixNano()
	step := int64(interval)
	mod := ns % step
	if mod < 0 {
		mod += step
	}
	return time.Unix(0, ns-mod).UTC()
}

// Resample emits the last price of every non-empty bucket. Ticks must already be ascending;
// empty buckets are skipped, never forward-filled.
func Resample(ticks []market.Tick, interval time.Duration) []market.Bar {
	if interval <= 0 || len(ticks) == 0 {
		return nil
	}
	bars := make([]market.Bar, 0, len(ticks))
	for _, tk := range ticks {
		bucket := BucketStart(tk.Timestamp, interval)
		if n := len(bars); n > 0 && bars[n-1].Timestamp.Equal(bucket) {
			bars[n-1].Close = tk.PriceFloat()
			continue
		}
		bars = append(bars, market.Bar{Timestamp: bucket, Instrument: tk.Instrument, Close: tk.PriceFloat()})
	}
	return bars
}

// VolumeBar is the traded size of one bucket.
type VolumeBar struct {
	Timestamp time.Time
	Volume    decimal.Decimal
}

// ResampleVolume sums tick sizes per non-empty bucket.
func ResampleVolume(ticks []market.Tick, interval time.Duration) []VolumeBar {
	if interval <= 0 || len(ticks) == 0 {
		return nil
	}
	out := make([]VolumeBar, 0, len(ticks))
	for _, tk := range ticks {
		bucket := BucketStart(tk.Timestamp, interval)
		if n := len(out); n > 0 && out[n-1].Timestamp.Equal(bucket) {
			out[n-1].Volume = out[n-1].Volume.Add(tk.Size)
			continue
		}
		out = append(out, VolumeBar{Timestamp: bucket, Volume: tk.Size})
	}
	return out
}

// Aligned holds two bar series joined on identical bucket timestamps.
type Aligned struct {
	Timestamps []time.Time
	Y          []float64
	X          []float64
}

// Len is the number of overlapping points.
func (a Aligned) Len() int {
	return len(a.Timestamps)
}

// Align inner-joins two ascending bar series on their timestamps.
func Align(y, x []market.Bar) Aligned {
	n := min(len(y), len(x))
	out := Aligned{
		Timestamps: make([]time.Time, 0, n),
		Y:          make([]float64, 0, n),
		X:          make([]float64, 0, n),
	}
	i, j := 0, 0
	for i < len(y) && j < len(x) {
		switch {
		case y[i].Timestamp.Before(x[j].Timestamp):
			i++
		case x[j].Timestamp.Before(y[i].Timestamp):
			j++
		default:
			out.Timestamps = append(out.Timestamps, y[i].Timestamp)
			out.Y = append(out.Y, y[i].Close)
			out.X = append(out.X, x[j].Close)
			i++
			j++
		}
	}
	return out
}
