package match

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"matchbot/internal/timeutil"
)

// Clock is the match countdown. Once started it cannot be paused; expiry
// runs onExpire on the timer goroutine and sets a sticky flag.
type Clock struct {
	clock    timeutil.Clock
	duration time.Duration

	mu      sync.Mutex
	started time.Time
	timer   timeutil.Timer
	expired atomic.Bool
}

// NewClock creates a stopped clock of the given duration.
func NewClock(c timeutil.Clock, d time.Duration) *Clock {
	return &Clock{clock: c, duration: d}
}

// Start begins the countdown.
func (c *Clock) Start(onExpire func()) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.started.IsZero() {
		return errors.New("match clock already started")
	}
	c.started = c.clock.Now()
	c.timer = c.clock.AfterFunc(c.duration, func() {
		c.expired.Store(true)
		if onExpire != nil {
			onExpire()
		}
	})
	return nil
}

// Started reports whether Start has been called.
func (c *Clock) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.started.IsZero()
}

// Elapsed returns the time since start, zero before start.
func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() {
		return 0
	}
	return c.clock.Since(c.started)
}

// Remaining returns the time left, never negative.
func (c *Clock) Remaining() time.Duration {
	if c.Expired() {
		return 0
	}
	r := c.duration - c.Elapsed()
	if r < 0 {
		return 0
	}
	return r
}

// Expired reports whether the countdown has run out.
func (c *Clock) Expired() bool { return c.expired.Load() }

// Stop cancels a pending expiry.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}

// Duration is the configured match length.
func (c *Clock) Duration() time.Duration { return c.duration }
