package analytics

import (
	"math"
	"math/rand"
	"testing"
)

func naiveMeanStd(series []float64, window int) (mean, std []Value) {
	mean = make([]Value, len(series))
	std = make([]Value, len(series))
	for i := range series {
		if i < window-1 {
			continue
		}
		var sum float64
		for j := i - window + 1; j <= i; j++ {
			sum += series[j]
		}
		m := sum / float64(window)
		var ss float64
		for j := i - window + 1; j <= i; j++ {
			ss += (series[j] - m) * (series[j] - m)
		}
		mean[i] = Value{V: m, OK: true}
		std[i] = Value{V: math.Sqrt(ss / float64(window-1)), OK: true}
	}
	return mean, std
}

func closeTo(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol*math.Max(1, math.Abs(b))
}

func TestRollingMeanStdMatchesNaive(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	series := make([]float64, 300)
	px := 100.0
	for i := range series {
		px += rng.NormFloat64()
		series[i] = px
	}

	for _, window := range []int{2, 5, 20, 50} {
		mean, std := RollingMeanStd(series, window)
		wantMean, wantStd := naiveMeanStd(series, window)
		for i := range series {
			if i < window-1 {
				if mean[i].OK || std[i].OK {
					t.Fatalf("window %d index %d should be undefined", window, i)
				}
				continue
			}
			if !mean[i].OK || !std[i].OK {
				t.Fatalf("window %d index %d should be defined", window, i)
			}
			if !closeTo(mean[i].V, wantMean[i].V, 1e-9) {
				t.Fatalf("window %d index %d mean %v != %v", window, i, mean[i].V, wantMean[i].V)
			}
			if !closeTo(std[i].V, wantStd[i].V, 1e-9) {
				t.Fatalf("window %d index %d std %v != %v", window, i, std[i].V, wantStd[i].V)
			}
		}
	}
}

func TestZScoreDefinition(t *testing.T) {
	series := []float64{1, 2, 3, 4, 10, 6, 7}
	window := 3
	z := ZScore(series, window)
	mean, std := naiveMeanStd(series, window)
	for i := range series {
		if i < window-1 {
			if z[i].OK {
				t.Fatalf("index %d should be undefined", i)
			}
			continue
		}
		want := (series[i] - mean[i].V) / std[i].V
		if !z[i].OK || !closeTo(z[i].V, want, 1e-12) {
			t.Fatalf("index %d: expected %v got %+v", i, want, z[i])
		}
	}
}

func TestZScoreZeroStdIsUndefined(t *testing.T) {
	series := []float64{5, 5, 5, 5, 6}
	z := ZScore(series, 3)
	for i := 0; i < 4; i++ {
		if z[i].OK {
			t.Fatalf("index %d should be undefined, got %v", i, z[i].V)
		}
	}
	if !z[4].OK || math.IsInf(z[4].V, 0) {
		t.Fatalf("index 4 should be finite, got %+v", z[4])
	}
}

func TestRollingWindowLargerThanSeries(t *testing.T) {
	stats := Rolling([]float64{1, 2, 3}, 10)
	for i := range stats.Mean {
		if stats.Mean[i].OK || stats.Std[i].OK || stats.ZScore[i].OK {
			t.Fatalf("index %d should be undefined", i)
		}
	}
	if Last(stats.ZScore).OK {
		t.Fatal("latest z-score should be undefined")
	}
}

func TestRollingWindowOne(t *testing.T) {
	mean, std := RollingMeanStd([]float64{3, 4}, 1)
	if !mean[0].OK || mean[0].V != 3 || std[0].OK {
		t.Fatalf("window 1: mean defined, std undefined; got %+v %+v", mean[0], std[0])
	}
}

func TestRollingCorrelation(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	n := 120
	x := make([]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = 100 + rng.NormFloat64()
		y[i] = 2*x[i] + 0.1*rng.NormFloat64()
	}
	corr := RollingCorrelation(y, x, 60)
	for i := 0; i < 59; i++ {
		if corr[i].OK {
			t.Fatalf("index %d should be undefined", i)
		}
	}
	for i := 59; i < n; i++ {
		if !corr[i].OK || corr[i].V < 0.95 || corr[i].V > 1.0000001 {
			t.Fatalf("index %d: expected strong positive correlation, got %+v", i, corr[i])
		}
	}

	if c := RollingCorrelation(y, x[:10], 5); len(c) != n || c[n-1].OK {
		t.Fatal("mismatched lengths should yield undefined series")
	}
	flat := RollingCorrelation([]float64{1, 2, 3}, []float64{4, 4, 4}, 3)
	if flat[2].OK {
		t.Fatal("zero variance window should be undefined")
	}
}
