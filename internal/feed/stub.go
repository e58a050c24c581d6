package feed

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"strconv"
	"time"
)

// StubSource emits synthetic trade messages in the exchange wire format. The first
// instrument trades at ratio times the second plus noise, so the pair cointegrates.
type StubSource struct {
	Interval time.Duration
	Base     float64
	Ratio    float64
	Noise    float64
}

// NewStubSource builds a stub with the given emission interval.
func NewStubSource(interval time.Duration) *StubSource {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	return &StubSource{Interval: interval, Base: 100, Ratio: 3, Noise: 0.5}
}

type stubTrade struct {
	Type      string `json:"e"`
	EventTime int64  `json:"E"`
	TradeTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	Maker     bool   `json:"m"`
}

// Connect starts emitting until ctx ends or the handle is closed.
func (s *StubSource) Connect(ctx context.Context, instruments []string) (*Handle, error) {
	handle := newHandle(len(instruments)*4, nil)
	go watchContext(ctx, handle)
	go s.run(ctx, instruments, handle)
	return handle, nil
}

func (s *StubSource) run(ctx context.Context, instruments []string, handle *Handle) {
	defer handle.Close()
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-handle.done:
			handle.finish(nil)
			return
		case now := <-ticker.C:
			anchor := s.Base + rand.NormFloat64()
			for i := len(instruments) - 1; i >= 0; i-- {
				price := anchor
				if i == 0 && len(instruments) > 1 {
					price = s.Ratio*anchor + s.Noise*rand.NormFloat64()
				} else if i > 1 {
					price = anchor * float64(i+1)
				}
				msg, _ := json.Marshal(stubTrade{
					Type:      tradeEventType,
					EventTime: now.UnixMilli(),
					TradeTime: now.UnixMilli(),
					Symbol:    instruments[i],
					Price:     strconv.FormatFloat(price, 'f', 4, 64),
					Quantity:  strconv.FormatFloat(0.01+rand.Float64(), 'f', 4, 64),
					Maker:     rand.IntN(2) == 0,
				})
				if !handle.emit(ctx, msg) {
					handle.finish(nil)
					return
				}
			}
		}
	}
}

var _ Source = (*StubSource)(nil)
