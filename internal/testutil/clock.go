package testutil

import (
	"context"
	"sync"
	"time"
)

// FakeClock is a manual clock for scheduler tests. Sleep advances the clock
// by the requested duration instead of blocking.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(now time.Time)
}

// NewFakeClock creates a clock reading start.
func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start}
}

// Now returns the current fake time.
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep advances the clock by d and records it. It returns ctx.Err() if the
// context is done before or after the advance.
func (c *FakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	now, cb := c.now, c.onSleep
	c.mu.Unlock()

	if cb != nil {
		cb(now)
	}
	return ctx.Err()
}

// Advance moves the clock forward without recording a sleep.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Sleeps returns a copy of every duration passed to Sleep.
func (c *FakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// OnSleep registers fn to run after each Sleep with the new time. Tests use
// it to cancel a loop after a number of wakes.
func (c *FakeClock) OnSleep(fn func(now time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSleep = fn
}
