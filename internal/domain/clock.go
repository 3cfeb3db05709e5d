package domain

import (
	"sync"
	"time"
)

// Clock provides the current time. Everything that needs "now" takes one so
// generation and reminder computation stay reproducible.
type Clock interface {
	Now() Moment
}

// SystemClock reads the wall clock in a timezone.
type SystemClock struct {
	Timezone string
}

// Now implements Clock.
func (c SystemClock) Now() Moment {
	loc := locationFor(c.Timezone)
	return At(time.Now().In(loc).Truncate(time.Second), labelFor(c.Timezone, loc))
}

// FixedClock is a settable clock for tests and replays.
type FixedClock struct {
	mu  sync.Mutex
	now Moment
}

// NewFixedClock returns a clock frozen at now.
func NewFixedClock(now Moment) *FixedClock {
	return &FixedClock{now: now}
}

// Now implements Clock.
func (c *FixedClock) Now() Moment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to m.
func (c *FixedClock) Set(m Moment) {
	c.mu.Lock()
	c.now = m
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
