package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSOptions parameterise the websocket source.
type WSOptions struct {
	URL              string
	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	Buffer           int
}

// WSSource subscribes to per-instrument trade streams over a websocket.
type WSSource struct {
	opts   WSOptions
	logger zerolog.Logger
}

// NewWSSource constructs a websocket source.
func NewWSSource(opts WSOptions, logger zerolog.Logger) *WSSource {
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 1024
	}
	return &WSSource{opts: opts, logger: logger}
}

// StreamURL appends the <symbol>@trade stream path for every instrument.
func StreamURL(base string, instruments []string) string {
	streams := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		streams = append(streams, strings.ToLower(inst)+"@trade")
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(streams, "/")
}

// Connect dials the stream and starts the reader.
func (s *WSSource) Connect(ctx context.Context, instruments []string) (*Handle, error) {
	if len(instruments) == 0 {
		return nil, fmt.Errorf("websocket feed requires at least one instrument")
	}

	url := StreamURL(s.opts.URL, instruments)
	dialer := websocket.Dialer{HandshakeTimeout: s.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	s.logger.Info().Str("url", url).Strs("instruments", instruments).Msg("connected trade feed")

	conn.SetReadLimit(1 << 20)
	s.extendDeadline(conn)
	conn.SetPongHandler(func(string) error {
		s.extendDeadline(conn)
		return nil
	})

	handle := newHandle(s.opts.Buffer, func() { _ = conn.Close() })
	go watchContext(ctx, handle)
	go s.readLoop(ctx, conn, handle)
	if s.opts.PingInterval > 0 {
		go s.pingLoop(conn, handle)
	}
	return handle, nil
}

func (s *WSSource) extendDeadline(conn *websocket.Conn) {
	if s.opts.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	}
}

func (s *WSSource) readLoop(ctx context.Context, conn *websocket.Conn, handle *Handle) {
	defer handle.Close()
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			}
			handle.finish(err)
			return
		}
		s.extendDeadline(conn)
		if !handle.emit(ctx, message) {
			handle.finish(ctx.Err())
			return
		}
	}
}

func (s *WSSource) pingLoop(conn *websocket.Conn, handle *Handle) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(5 * time.Second)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.Warn().Err(err).Msg("feed ping failed")
				return
			}
		case <-handle.done:
			return
		}
	}
}

var _ Source = (*WSSource)(nil)
