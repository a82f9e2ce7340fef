package testutil

import (
	"sync"
	"time"
)

// SimulatedClock implements types.Clock with a settable instant so tests can
// drive the cron sweep deterministically.
type SimulatedClock struct {
	mu  sync.RWMutex
	now time.Time
}

func NewSimulatedClock(now time.Time) *SimulatedClock {
	return &SimulatedClock{now: now.UTC()}
}

func (c *SimulatedClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// SetNow moves the clock to the given instant.
func (c *SimulatedClock) SetNow(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now.UTC()
}

// Advance moves the clock forward by d.
func (c *SimulatedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
