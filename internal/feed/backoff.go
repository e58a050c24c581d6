package feed

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff yields exponentially growing, jittered reconnect delays capped at Max.
type Backoff struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
	// Jitter is the fraction of each delay that is randomised, in [0,1].
	Jitter float64

	current time.Duration
	rand    func() float64
}

// NewBackoff builds a backoff with sane fallbacks for zero values.
func NewBackoff(initial, maxDelay time.Duration, multiplier float64) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if maxDelay < initial {
		maxDelay = initial
	}
	if multiplier < 1 {
		multiplier = 1
	}
	return &Backoff{Initial: initial, Max: maxDelay, Multiplier: multiplier, Jitter: 0.2, rand: rand.Float64}
}

// Next returns the delay to wait before the next attempt and advances the schedule.
func (b *Backoff) Next() time.Duration {
	if b.current <= 0 {
		b.current = b.Initial
	}
	delay := b.current
	b.current = time.Duration(math.Min(float64(b.Max), float64(b.current)*b.Multiplier))

	if b.Jitter > 0 && b.rand != nil {
		spread := float64(delay) * b.Jitter
		delay = time.Duration(float64(delay) - spread + 2*spread*b.rand())
	}
	if delay > b.Max {
		delay = b.Max
	}
	return delay
}

// Reset restarts the schedule after a healthy connection.
func (b *Backoff) Reset() {
	b.current = 0
}
