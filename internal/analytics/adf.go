package analytics

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	// MinADFObservations is the shortest series the stationarity test accepts.
	MinADFObservations = 30
	// StationaryPValue is the significance level for the stationarity verdict.
	StationaryPValue = 0.05
)

// ADFResult is the outcome of an Augmented Dickey-Fuller test with a constant term.
// Computed is false when the conservative fallback (p=1, not stationary) was used.
type ADFResult struct {
	Statistic  float64
	PValue     float64
	UsedLag    int
	NObs       int
	Stationary bool
	Computed   bool
}

func adfFallback() ADFResult {
	return ADFResult{PValue: 1.0}
}

var errDegenerate = errors.New("degenerate regression")

// ADF tests series for a unit root. The lag order is chosen by AIC up to
// ceil(12*(n/100)^0.25). Short series or numerical failure return p=1, not stationary.
func ADF(series []float64) ADFResult {
	n := len(series)
	if n < MinADFObservations {
		return adfFallback()
	}
	for _, v := range series {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return adfFallback()
		}
	}

	maxLag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	maxLag = min(n/2-2, maxLag)
	if maxLag < 0 {
		return adfFallback()
	}

	diff := make([]float64, n-1)
	for i := range diff {
		diff[i] = series[i+1] - series[i]
	}

	// lag selection on a common sample
	bestLag, bestAIC := -1, math.Inf(1)
	rows := len(diff) - maxLag
	for lag := 0; lag <= maxLag; lag++ {
		fit, err := adfRegression(series, diff, lag, rows)
		if err != nil {
			continue
		}
		if fit.aic < bestAIC {
			bestAIC, bestLag = fit.aic, lag
		}
	}
	if bestLag < 0 {
		return adfFallback()
	}

	fit, err := adfRegression(series, diff, bestLag, len(diff)-bestLag)
	if err != nil || math.IsNaN(fit.tstat) || math.IsInf(fit.tstat, 0) {
		return adfFallback()
	}

	p := mackinnonP(fit.tstat)
	return ADFResult{
		Statistic:  fit.tstat,
		PValue:     p,
		UsedLag:    bestLag,
		NObs:       fit.nobs,
		Stationary: p < StationaryPValue,
		Computed:   true,
	}
}

type adfFit struct {
	tstat float64
	aic   float64
	nobs  int
}

// adfRegression fits diff[t] = c + g*level[t-1] + sum_k d_k*diff[t-k] over the last rows
// observations and returns the t-statistic of g.
func adfRegression(level, diff []float64, lag, rows int) (adfFit, error) {
	cols := 2 + lag
	if rows <= cols {
		return adfFit{}, errDegenerate
	}
	X := mat.NewDense(rows, cols, nil)
	y := mat.NewVecDense(rows, nil)
	offset := len(diff) - rows
	for i := 0; i < rows; i++ {
		j := offset + i
		y.SetVec(i, diff[j])
		X.Set(i, 0, level[j])
		X.Set(i, 1, 1)
		for k := 1; k <= lag; k++ {
			X.Set(i, 1+k, diff[j-k])
		}
	}

	beta, se, ssr, err := olsFit(X, y)
	if err != nil {
		return adfFit{}, err
	}
	if se[0] == 0 {
		return adfFit{}, errDegenerate
	}

	nobs := float64(rows)
	llf := -nobs / 2 * (math.Log(2*math.Pi) + math.Log(ssr/nobs) + 1)
	return adfFit{
		tstat: beta[0] / se[0],
		aic:   -2*llf + 2*float64(cols),
		nobs:  rows,
	}, nil
}

// olsFit solves least squares by QR and returns coefficients, their standard errors and SSR.
func olsFit(X *mat.Dense, y *mat.VecDense) (beta, se []float64, ssr float64, err error) {
	rows, cols := X.Dims()

	var qr mat.QR
	qr.Factorize(X)
	var b mat.VecDense
	if err := qr.SolveVecTo(&b, false, y); err != nil {
		return nil, nil, 0, err
	}

	var fitted mat.VecDense
	fitted.MulVec(X, &b)
	var resid mat.VecDense
	resid.SubVec(y, &fitted)
	ssr = mat.Dot(&resid, &resid)
	if ssr <= 0 || math.IsNaN(ssr) {
		return nil, nil, 0, errDegenerate
	}

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, nil, 0, err
	}

	sigma2 := ssr / float64(rows-cols)
	beta = make([]float64, cols)
	se = make([]float64, cols)
	for i := 0; i < cols; i++ {
		beta[i] = b.AtVec(i)
		v := sigma2 * inv.At(i, i)
		if v < 0 || math.IsNaN(v) {
			return nil, nil, 0, errDegenerate
		}
		se[i] = math.Sqrt(v)
	}
	return beta, se, ssr, nil
}

// MacKinnon (1994) response-surface coefficients for one series with a constant.
const (
	tauMaxC  = 2.74
	tauMinC  = -18.83
	tauStarC = -1.61
)

var (
	tauSmallPC = []float64{2.1659, 1.4412, 0.038269}
	tauLargePC = []float64{1.7339, 0.93202, -0.12745, -0.010368}
)

// mackinnonP approximates the p-value of an ADF statistic.
func mackinnonP(stat float64) float64 {
	if stat > tauMaxC {
		return 1.0
	}
	if stat < tauMinC {
		return 0.0
	}
	coef := tauLargePC
	if stat <= tauStarC {
		coef = tauSmallPC
	}
	var poly float64
	for i := len(coef) - 1; i >= 0; i-- {
		poly = poly*stat + coef[i]
	}
	return distuv.UnitNormal.CDF(poly)
}
