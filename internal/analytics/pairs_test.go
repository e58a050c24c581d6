package analytics

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func cointegrated(n int, seed int64) (y, x []float64) {
	rng := rand.New(rand.NewSource(seed))
	x = make([]float64, n)
	y = make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = 100 + rng.NormFloat64()
		y[i] = 3*x[i] + 0.2*rng.NormFloat64()
	}
	return y, x
}

func TestHedgeRatioConverges(t *testing.T) {
	y, x := cointegrated(5000, 42)
	beta := HedgeRatio(y, x)
	if math.Abs(beta-3) > 0.02 {
		t.Fatalf("expected beta near 3, got %v", beta)
	}
	est := EstimateHedge(y, x)
	if !est.OK || math.Abs(est.Alpha) > 3 {
		t.Fatalf("unexpected estimate %+v", est)
	}
}

func TestHedgeRatioDegenerate(t *testing.T) {
	cases := map[string][2][]float64{
		"mismatched": {{1, 2, 3}, {1, 2}},
		"single":     {{1}, {1}},
		"empty":      {nil, nil},
		"flat x":     {{1, 2, 3}, {5, 5, 5}},
	}
	for name, tc := range cases {
		if beta := HedgeRatio(tc[0], tc[1]); beta != 0.0 {
			t.Fatalf("%s: expected 0.0, got %v", name, beta)
		}
		if EstimateHedge(tc[0], tc[1]).OK {
			t.Fatalf("%s: estimate should not be OK", name)
		}
	}
}

func TestSpread(t *testing.T) {
	got := Spread([]float64{10, 20}, []float64{1, 2}, 3)
	if len(got) != 2 || got[0] != 7 || got[1] != 14 {
		t.Fatalf("unexpected spread %v", got)
	}
	if Spread([]float64{1}, []float64{1, 2}, 1) != nil {
		t.Fatal("mismatched spread should be nil")
	}
}

func alignedFrom(y, x []float64) Aligned {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	a := Aligned{Y: y, X: x}
	for i := range y {
		a.Timestamps = append(a.Timestamps, base.Add(time.Duration(i)*time.Second))
	}
	return a
}

func TestComputePairReady(t *testing.T) {
	y, x := cointegrated(200, 7)
	sig := ComputePair(alignedFrom(y, x), 50, 60)
	if sig.Status != StatusReady {
		t.Fatalf("expected ready signal, got %s", sig.Status)
	}
	if math.Abs(sig.HedgeRatio()-3) > 0.1 {
		t.Fatalf("expected hedge ratio near 3, got %v", sig.HedgeRatio())
	}
	if len(sig.Spread) != 200 || len(sig.SpreadZScore) != 200 || len(sig.Correlation) != 200 {
		t.Fatal("derived series should align with input")
	}
	if !sig.LatestSpreadZ.OK {
		t.Fatal("latest spread z-score should be defined")
	}
	if !sig.LatestCorrelation.OK {
		t.Fatal("latest correlation should be defined")
	}
	if !sig.IsStationary() || !sig.ADF.Computed {
		t.Fatalf("spread should test stationary, got %+v", sig.ADF)
	}
}

func TestComputePairPending(t *testing.T) {
	y, x := cointegrated(20, 1)
	sig := ComputePair(alignedFrom(y, x), 50, 60)
	if sig.Status != StatusPending {
		t.Fatalf("expected pending, got %s", sig.Status)
	}
	if sig.Observations != 20 || sig.Required != 50 {
		t.Fatalf("unexpected counts %d/%d", sig.Observations, sig.Required)
	}
	if sig.Spread != nil || sig.LatestSpreadZ.OK || sig.IsStationary() {
		t.Fatal("pending signal must not carry values")
	}
}
