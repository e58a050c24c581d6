package service

import (
	"time"

	"github.com/shopspring/decimal"

	"pairwatch/internal/analytics"
	"pairwatch/internal/market"
)

// State tells consumers whether a snapshot carries signals yet.
type State string

const (
	// StateAwaitingData is the warm-up state: fewer bars than the window requires.
	StateAwaitingData State = "awaiting_data"
	StateReady        State = "ready"
)

// Snapshot is everything one refresh cycle computed.
type Snapshot struct {
	At          time.Time            `json:"at"`
	Timeframe   string               `json:"timeframe"`
	Window      int                  `json:"window"`
	Lookback    string               `json:"lookback"`
	State       State                `json:"state"`
	Instruments []InstrumentSnapshot `json:"instruments"`
	Pair        *PairSnapshot        `json:"pair,omitempty"`
}

// Ready reports whether every instrument and the pair produced signals.
func (s Snapshot) Ready() bool {
	return s.State == StateReady
}

// Instrument looks up one instrument's view.
func (s Snapshot) Instrument(id string) (InstrumentSnapshot, bool) {
	for _, inst := range s.Instruments {
		if inst.Instrument == id {
			return inst, true
		}
	}
	return InstrumentSnapshot{}, false
}

// InstrumentSnapshot is the per-instrument output of a cycle.
type InstrumentSnapshot struct {
	Instrument  string          `json:"instrument"`
	State       State           `json:"state"`
	Ticks       int             `json:"ticks"`
	Bars        int             `json:"bars"`
	LastPrice   analytics.Value `json:"last_price"`
	LastTradeAt *time.Time      `json:"last_trade_at,omitempty"`
	Mean        analytics.Value `json:"mean"`
	Std         analytics.Value `json:"std"`
	ZScore      analytics.Value `json:"zscore"`
	BuyVolume   decimal.Decimal `json:"buy_volume"`
	SellVolume  decimal.Decimal `json:"sell_volume"`
	NetFlow     decimal.Decimal `json:"net_flow"`

	Series  []market.Bar           `json:"-"`
	Rolling analytics.RollingStats `json:"-"`
	Volume  []analytics.VolumeBar  `json:"-"`
}

// PairSnapshot is the cointegration view of the first two instruments.
type PairSnapshot struct {
	Label        string          `json:"label"`
	Y            string          `json:"y"`
	X            string          `json:"x"`
	State        State           `json:"state"`
	Observations int             `json:"observations"`
	Required     int             `json:"required"`
	HedgeRatio   float64         `json:"hedge_ratio"`
	HedgeOK      bool            `json:"hedge_ok"`
	SpreadZScore analytics.Value `json:"spread_zscore"`
	ADFStatistic analytics.Value `json:"adf_statistic"`
	ADFPValue    float64         `json:"adf_pvalue"`
	ADFComputed  bool            `json:"adf_computed"`
	Stationary   bool            `json:"stationary"`
	Correlation  analytics.Value `json:"correlation"`

	Aligned analytics.Aligned    `json:"-"`
	Signal  analytics.PairSignal `json:"-"`
}

// PairLabel names a pair as "y/x".
func PairLabel(y, x string) string {
	return y + "/" + x
}

func pairSnapshot(y, x string, aligned analytics.Aligned, sig analytics.PairSignal) *PairSnapshot {
	ps := &PairSnapshot{
		Label:        PairLabel(y, x),
		Y:            y,
		X:            x,
		State:        StateAwaitingData,
		Observations: sig.Observations,
		Required:     sig.Required,
		ADFPValue:    1.0,
		Aligned:      aligned,
		Signal:       sig,
	}
	if sig.Status != analytics.StatusReady {
		return ps
	}
	ps.State = StateReady
	ps.HedgeRatio = sig.HedgeRatio()
	ps.HedgeOK = sig.Hedge.OK
	ps.SpreadZScore = sig.LatestSpreadZ
	ps.ADFPValue = sig.ADF.PValue
	ps.ADFComputed = sig.ADF.Computed
	if sig.ADF.Computed {
		ps.ADFStatistic = analytics.Defined(sig.ADF.Statistic)
	}
	ps.Stationary = sig.IsStationary()
	ps.Correlation = sig.LatestCorrelation
	return ps
}
