// Package testutil holds clocks, directory helpers and operation generators
// for cache tests.
package testutil

import (
	"sync"
	"time"
)

// Clock is a manually advanced clock. Pass [Clock.Now] as a cache's time
// source to control expiry.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock returns a clock initialized to a fixed UTC start time.
func NewClock() *Clock {
	return &Clock{
		current: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
	}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.current
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.current = c.current.Add(d)
}
