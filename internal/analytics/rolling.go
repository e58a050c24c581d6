package analytics

import (
	"gonum.org/v1/gonum/stat"
)

// RollingMeanStd computes the trailing mean and sample standard deviation (n-1) over
// series[i-window+1 .. i]. Indices before window-1 are undefined.
func RollingMeanStd(series []float64, window int) (mean, std []Value) {
	mean = undefinedSeries(len(series))
	std = undefinedSeries(len(series))
	if window <= 0 {
		return mean, std
	}
	for i := window - 1; i < len(series); i++ {
		win := series[i-window+1 : i+1]
		if window == 1 {
			mean[i] = Defined(win[0])
			continue
		}
		m, s := stat.MeanStdDev(win, nil)
		mean[i] = Defined(m)
		std[i] = Defined(s)
	}
	return mean, std
}

// ZScore is (series[i] - mean[i]) / std[i]; undefined where std is undefined or zero.
func ZScore(series []float64, window int) []Value {
	mean, std := RollingMeanStd(series, window)
	return zscoreFrom(series, mean, std)
}

func zscoreFrom(series []float64, mean, std []Value) []Value {
	out := undefinedSeries(len(series))
	for i, v := range series {
		if !mean[i].OK || !std[i].OK || std[i].V == 0 {
			continue
		}
		out[i] = Defined((v - mean[i].V) / std[i].V)
	}
	return out
}

// RollingStats bundles the aligned rolling series of one input.
type RollingStats struct {
	Mean   []Value
	Std    []Value
	ZScore []Value
}

// Rolling computes mean, std and z-score in one pass over the windows.
func Rolling(series []float64, window int) RollingStats {
	mean, std := RollingMeanStd(series, window)
	return RollingStats{Mean: mean, Std: std, ZScore: zscoreFrom(series, mean, std)}
}

// RollingCorrelation is the Pearson correlation of y and x over a trailing window.
// Mismatched lengths yield an all-undefined series the length of y.
func RollingCorrelation(y, x []float64, window int) []Value {
	out := undefinedSeries(len(y))
	if window < 2 || len(y) != len(x) {
		return out
	}
	for i := window - 1; i < len(y); i++ {
		out[i] = Defined(stat.Correlation(y[i-window+1:i+1], x[i-window+1:i+1], nil))
	}
	return out
}
