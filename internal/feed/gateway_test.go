package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"pairwatch/internal/storage"
)

func tradeJSON(symbol string, millis int64, price string, maker bool) string {
	return fmt.Sprintf(`{"e":"trade","E":%d,"T":%d,"s":"%s","p":"%s","q":"0.1","m":%t}`, millis, millis, symbol, price, maker)
}

func openStore(t *testing.T) *storage.FileLog {
	t.Helper()
	store, err := storage.OpenFileLog(filepath.Join(t.TempDir(), "ticks.csv"), false)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func waitForTicks(t *testing.T, store storage.TickStore, instrument string, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		ticks, err := store.Query(context.Background(), instrument, nil)
		if err != nil {
			t.Fatalf("query: %v", err)
		}
		if len(ticks) >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d %s ticks", n, instrument)
}

func TestGatewayReconnectsAndStoresInOrder(t *testing.T) {
	var connections atomic.Int32
	var requestedPath atomic.Value
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath.Store(r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		n := connections.Add(1)
		var messages []string
		if n == 1 {
			messages = []string{
				tradeJSON("BTCUSDT", 1714564810000, "101", false),
				`{"e":"aggTrade","s":"BTCUSDT"}`,
				`{"e":"trade",`,
				`{"e":"trade","s":"BTCUSDT","p":"1","q":"1","m":true}`,
				tradeJSON("BTCUSDT", 1714564820000, "102", true),
			}
		} else {
			messages = []string{
				tradeJSON("BTCUSDT", 1714564805000, "100", false),
			}
		}
		for _, m := range messages {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(m)); err != nil {
				return
			}
		}
		if n == 1 {
			return
		}
		// Hold the second connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	store := openStore(t)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	source := NewWSSource(WSOptions{URL: wsURL, Buffer: 8}, zerolog.Nop())
	backoff := NewBackoff(10*time.Millisecond, 50*time.Millisecond, 2)
	gw := NewGateway(source, store, []string{"btcusdt"}, backoff, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	waitForTicks(t, store, "btcusdt", 3)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not stop after cancel")
	}

	if connections.Load() < 2 {
		t.Fatalf("expected a reconnect, saw %d connections", connections.Load())
	}
	if path, _ := requestedPath.Load().(string); path != "/ws/btcusdt@trade" {
		t.Fatalf("unexpected stream path %q", path)
	}

	ticks, err := store.Query(context.Background(), "btcusdt", nil)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(ticks) != 3 {
		t.Fatalf("expected 3 stored trades, got %d", len(ticks))
	}
	for i := 1; i < len(ticks); i++ {
		if ticks[i].Timestamp.Before(ticks[i-1].Timestamp) {
			t.Fatalf("ticks not ascending at %d: %v after %v", i, ticks[i].Timestamp, ticks[i-1].Timestamp)
		}
	}
	if ticks[0].Price.String() != "100" {
		t.Fatalf("earliest trade should come first, got price %s", ticks[0].Price)
	}
}

func TestGatewayWithStubSource(t *testing.T) {
	store := openStore(t)
	source := NewStubSource(5 * time.Millisecond)
	gw := NewGateway(source, store, []string{"btcusdt", "ethusdt"}, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	waitForTicks(t, store, "btcusdt", 5)
	waitForTicks(t, store, "ethusdt", 5)
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestGatewayRetriesFailedConnect(t *testing.T) {
	store := openStore(t)
	source := NewWSSource(WSOptions{URL: "ws://127.0.0.1:1/ws", HandshakeTimeout: 100 * time.Millisecond}, zerolog.Nop())
	gw := NewGateway(source, store, []string{"btcusdt"}, NewBackoff(5*time.Millisecond, 10*time.Millisecond, 2), zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := gw.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
