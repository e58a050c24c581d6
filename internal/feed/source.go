package feed

import (
	"context"
	"sync"
)

// Source opens connections to a trade stream.
type Source interface {
	Connect(ctx context.Context, instruments []string) (*Handle, error)
}

// Handle is one live connection. Events yields raw messages until the connection fails
// or Close is called; it is not restartable.
type Handle struct {
	events chan []byte
	done   chan struct{}

	closeOnce sync.Once
	closeFn   func()

	mu  sync.Mutex
	err error
}

func newHandle(buffer int, closeFn func()) *Handle {
	return &Handle{
		events:  make(chan []byte, buffer),
		done:    make(chan struct{}),
		closeFn: closeFn,
	}
}

// Events is closed when the connection ends.
func (h *Handle) Events() <-chan []byte {
	return h.events
}

// Err reports why the connection ended; nil after a clean Close.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Close terminates the connection. Safe to call more than once.
func (h *Handle) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
		if h.closeFn != nil {
			h.closeFn()
		}
	})
}

func (h *Handle) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// emit delivers one message, giving up when the handle or ctx is closed.
func (h *Handle) emit(ctx context.Context, msg []byte) bool {
	select {
	case h.events <- msg:
		return true
	case <-h.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// finish records the terminal error and closes the event channel. Called once by the producer.
func (h *Handle) finish(err error) {
	h.mu.Lock()
	if !h.closed() {
		h.err = err
	}
	h.mu.Unlock()
	close(h.events)
}

// watchContext closes the handle when ctx ends so blocked readers wake up.
func watchContext(ctx context.Context, h *Handle) {
	select {
	case <-ctx.Done():
		h.Close()
	case <-h.done:
	}
}
