package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"pairwatch/internal/market"
)

// TradeFlow is the aggressor volume split over a trailing window.
type TradeFlow struct {
	Since      time.Time
	BuyVolume  decimal.Decimal
	SellVolume decimal.Decimal
}

// NetFlow is buy volume minus sell volume.
func (f TradeFlow) NetFlow() decimal.Decimal {
	return f.BuyVolume.Sub(f.SellVolume)
}

// Flow sums buy and sell size over the window ending at the latest tick. Ticks must be ascending.
func Flow(ticks []market.Tick, window time.Duration) TradeFlow {
	flow := TradeFlow{BuyVolume: decimal.Zero, SellVolume: decimal.Zero}
	if len(ticks) == 0 {
		return flow
	}
	flow.Since = ticks[len(ticks)-1].Timestamp.Add(-window)
	for i := len(ticks) - 1; i >= 0; i-- {
		tk := ticks[i]
		if tk.Timestamp.Before(flow.Since) {
			break
		}
		switch tk.Side {
		case market.Buy:
			flow.BuyVolume = flow.BuyVolume.Add(tk.Size)
		case market.Sell:
			flow.SellVolume = flow.SellVolume.Add(tk.Size)
		}
	}
	return flow
}
