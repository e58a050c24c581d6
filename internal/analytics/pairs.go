package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// HedgeEstimate is an OLS fit of Y = Alpha + Beta*X.
type HedgeEstimate struct {
	Alpha float64
	Beta  float64
	OK    bool
}

// EstimateHedge fits Y on X with an intercept. OK is false when the inputs differ in
// length, have fewer than two points, or X has no variance.
func EstimateHedge(y, x []float64) HedgeEstimate {
	if len(y) != len(x) || len(y) < 2 {
		return HedgeEstimate{}
	}
	if stat.Variance(x, nil) == 0 {
		return HedgeEstimate{}
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	if math.IsNaN(beta) || math.IsInf(beta, 0) || math.IsNaN(alpha) || math.IsInf(alpha, 0) {
		return HedgeEstimate{}
	}
	return HedgeEstimate{Alpha: alpha, Beta: beta, OK: true}
}

// HedgeRatio returns the OLS beta of Y on X, or 0.0 when no relationship can be estimated.
func HedgeRatio(y, x []float64) float64 {
	est := EstimateHedge(y, x)
	if !est.OK {
		return 0.0
	}
	return est.Beta
}

// Spread is y - beta*x elementwise; nil when the lengths differ.
func Spread(y, x []float64, beta float64) []float64 {
	if len(y) != len(x) {
		return nil
	}
	out := make([]float64, len(y))
	for i := range y {
		out[i] = y[i] - beta*x[i]
	}
	return out
}

// SignalStatus reports whether a PairSignal carries computed values.
type SignalStatus string

const (
	StatusPending SignalStatus = "pending"
	StatusReady   SignalStatus = "ready"
)

// PairSignal is the cointegration view of two aligned price series.
type PairSignal struct {
	Status       SignalStatus
	Observations int
	Required     int

	Hedge             HedgeEstimate
	Spread            []float64
	SpreadZScore      []Value
	LatestSpreadZ     Value
	ADF               ADFResult
	Correlation       []Value
	LatestCorrelation Value
}

// HedgeRatio exposes beta with the 0.0 convention for failed fits.
func (p PairSignal) HedgeRatio() float64 {
	if !p.Hedge.OK {
		return 0.0
	}
	return p.Hedge.Beta
}

// IsStationary reports the ADF verdict.
func (p PairSignal) IsStationary() bool {
	return p.ADF.Stationary
}

// ComputePair runs hedge estimation, spread, spread z-score, ADF and rolling correlation.
// Fewer than window aligned points yields a pending signal with no values.
func ComputePair(aligned Aligned, window, corrWindow int) PairSignal {
	sig := PairSignal{Status: StatusPending, Observations: aligned.Len(), Required: window}
	if window < 2 || aligned.Len() < window {
		return sig
	}

	sig.Status = StatusReady
	sig.Hedge = EstimateHedge(aligned.Y, aligned.X)
	sig.Spread = Spread(aligned.Y, aligned.X, sig.HedgeRatio())
	sig.SpreadZScore = ZScore(sig.Spread, window)
	sig.LatestSpreadZ = Last(sig.SpreadZScore)
	sig.ADF = ADF(sig.Spread)
	sig.Correlation = RollingCorrelation(aligned.Y, aligned.X, corrWindow)
	sig.LatestCorrelation = Last(sig.Correlation)
	return sig
}
