package feed

import (
	"errors"
	"testing"
	"time"

	"pairwatch/internal/market"
)

func TestClassifyTrade(t *testing.T) {
	raw := []byte(`{"e":"trade","E":1714564800100,"T":1714564800050,"s":"BTCUSDT","t":1,"p":"64000.10","q":"0.005","X":"MARKET","m":true}`)
	ev, err := Classify(raw)
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	trade, ok := ev.(TradeEvent)
	if !ok {
		t.Fatalf("expected TradeEvent, got %T", ev)
	}
	if trade.Symbol != "BTCUSDT" || trade.Price != "64000.10" {
		t.Fatalf("unexpected trade %+v", trade)
	}

	tick, err := Normalize(trade)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if tick.Instrument != "btcusdt" {
		t.Fatalf("instrument should be lower-cased, got %s", tick.Instrument)
	}
	if !tick.Timestamp.Equal(time.UnixMilli(1714564800050)) {
		t.Fatalf("trade time should be preferred, got %v", tick.Timestamp)
	}
	if tick.Side != market.Sell {
		t.Fatalf("maker flag true should map to SELL, got %s", tick.Side)
	}
	if tick.Price.String() != "64000.1" || tick.Size.String() != "0.005" {
		t.Fatalf("unexpected price/size %s/%s", tick.Price, tick.Size)
	}
}

func TestClassifyCombinedEnvelope(t *testing.T) {
	raw := []byte(`{"stream":"ethusdt@trade","data":{"e":"trade","E":1714564800100,"s":"ETHUSDT","p":"3000","q":"1","m":false}}`)
	tick, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tick.Instrument != "ethusdt" || tick.Side != market.Buy {
		t.Fatalf("unexpected tick %+v", tick)
	}
	if !tick.Timestamp.Equal(time.UnixMilli(1714564800100)) {
		t.Fatalf("event time fallback not applied, got %v", tick.Timestamp)
	}
}

func TestParseSpotTradePayload(t *testing.T) {
	raw := []byte(`{"e":"trade","E":1714564800100,"s":"BNBBTC","t":12345,"p":"0.001","q":"100","b":88,"a":50,"T":1714564800050,"m":false,"M":true}`)
	tick, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tick.Side != market.Buy {
		t.Fatalf("ignore flag M must not override maker flag, got %s", tick.Side)
	}
	if !tick.Timestamp.Equal(time.UnixMilli(1714564800050)) {
		t.Fatalf("trade id must not be read as trade time, got %v", tick.Timestamp)
	}
}

func TestParseFuturesTradePayload(t *testing.T) {
	raw := []byte(`{"e":"trade","E":1714564800100,"T":1714564800050,"s":"BTCUSDT","t":987654,"p":"64000.10","q":"0.005","X":"MARKET","m":false}`)
	tick, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !tick.Timestamp.Equal(time.UnixMilli(1714564800050)) {
		t.Fatalf("trade id must not be read as trade time, got %v", tick.Timestamp)
	}
	if tick.Side != market.Buy {
		t.Fatalf("expected BUY, got %s", tick.Side)
	}
}

func TestClassifyOther(t *testing.T) {
	cases := []string{
		`{"e":"aggTrade","s":"BTCUSDT","p":"1","q":"1","T":1,"m":true}`,
		`{"result":null,"id":1}`,
	}
	for _, raw := range cases {
		ev, err := Classify([]byte(raw))
		if err != nil {
			t.Fatalf("%s: unexpected error %v", raw, err)
		}
		if _, ok := ev.(OtherEvent); !ok {
			t.Fatalf("%s: expected OtherEvent, got %T", raw, ev)
		}
		if _, err := Parse([]byte(raw)); !errors.Is(err, ErrNotTrade) {
			t.Fatalf("%s: expected ErrNotTrade, got %v", raw, err)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"not json": `{"e":"trade",`,
		"array": `[1,2,3]`,
		"bad price": `{"e":"trade","T":1714564800000,"s":"BTCUSDT","p":"abc","q":"1","m":false}`,
		"zero price": `{"e":"trade","T":1714564800000,"s":"BTCUSDT","p":"0","q":"1","m":false}`,
		"negative size": `{"e":"trade","T":1714564800000,"s":"BTCUSDT","p":"1","q":"-1","m":false}`,
		"no symbol": `{"e":"trade","T":1714564800000,"p":"1","q":"1","m":false}`,
		"no maker flag": `{"e":"trade","T":1714564800000,"s":"BTCUSDT","p":"1","q":"1"}`,
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseMissingTimestamp(t *testing.T) {
	raw := []byte(`{"e":"trade","s":"BTCUSDT","p":"1","q":"1","m":false}`)
	if _, err := Parse(raw); !errors.Is(err, ErrMissingTimestamp) {
		t.Fatalf("expected ErrMissingTimestamp, got %v", err)
	}
}

func TestStreamURL(t *testing.T) {
	got := StreamURL("wss://fstream.binance.com/ws/", []string{"BTCUSDT", "ethusdt"})
	want := "wss://fstream.binance.com/ws/btcusdt@trade/ethusdt@trade"
	if got != want {
		t.Fatalf("expected %s got %s", want, got)
	}
}
