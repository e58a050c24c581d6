package alerting

import (
	"math"
	"sync"
	"time"
)

// Cooldown rate-limits alerts per key.
type Cooldown struct {
	period time.Duration

	mu   sync.Mutex
	last map[string]time.Time
}

// NewCooldown builds a limiter; a non-positive period lets every alert through.
func NewCooldown(period time.Duration) *Cooldown {
	return &Cooldown{period: period, last: make(map[string]time.Time)}
}

// Allow reports whether key may fire at now, and records the firing when it may.
func (c *Cooldown) Allow(key string, now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.last[key]; ok && c.period > 0 && now.Sub(prev) < c.period {
		return false
	}
	c.last[key] = now
	return true
}

// Breached reports whether |z| reaches the threshold. A zero threshold never fires.
func Breached(z, threshold float64) bool {
	return threshold > 0 && math.Abs(z) >= threshold
}
