package analytics

import (
	"math"
	"math/rand"
	"testing"
)

func TestADFShortSeriesFallback(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for n := 0; n < MinADFObservations; n++ {
		series := make([]float64, n)
		for i := range series {
			series[i] = rng.NormFloat64()
		}
		res := ADF(series)
		if res.PValue != 1.0 || res.Stationary || res.Computed {
			t.Fatalf("n=%d: expected (1.0, false) fallback, got %+v", n, res)
		}
	}
}

func TestADFMeanRevertingSeries(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	series := make([]float64, 300)
	for i := 1; i < len(series); i++ {
		series[i] = 0.3*series[i-1] + rng.NormFloat64()
	}
	res := ADF(series)
	if !res.Computed {
		t.Fatal("test should be computed")
	}
	if !res.Stationary || res.PValue >= StationaryPValue {
		t.Fatalf("expected stationary verdict, got %+v", res)
	}
	if res.Statistic >= -2.86 {
		t.Fatalf("expected strongly negative statistic, got %v", res.Statistic)
	}
}

func TestADFDegenerateSeriesFallback(t *testing.T) {
	flat := make([]float64, 100)
	for i := range flat {
		flat[i] = 42
	}
	if res := ADF(flat); res.PValue != 1.0 || res.Stationary || res.Computed {
		t.Fatalf("constant series should fall back, got %+v", res)
	}

	withNaN := make([]float64, 100)
	withNaN[50] = math.NaN()
	if res := ADF(withNaN); res.PValue != 1.0 || res.Stationary {
		t.Fatalf("NaN input should fall back, got %+v", res)
	}
}

func TestMacKinnonP(t *testing.T) {
	if p := mackinnonP(3.0); p != 1.0 {
		t.Fatalf("above max statistic should give 1, got %v", p)
	}
	if p := mackinnonP(-25); p != 0.0 {
		t.Fatalf("below min statistic should give 0, got %v", p)
	}
	// 5% critical value for the constant-only case
	if p := mackinnonP(-2.86); math.Abs(p-0.05) > 0.005 {
		t.Fatalf("expected p near 0.05 at -2.86, got %v", p)
	}
	if p := mackinnonP(-3.43); math.Abs(p-0.01) > 0.005 {
		t.Fatalf("expected p near 0.01 at -3.43, got %v", p)
	}
	prev := 0.0
	for stat := -6.0; stat <= 2.5; stat += 0.25 {
		p := mackinnonP(stat)
		if p < prev-1e-9 {
			t.Fatalf("p-value not monotone at %v", stat)
		}
		prev = p
	}
}
