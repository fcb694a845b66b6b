// SPDX-License-Identifier: MPL-2.0

// Package clock abstracts time so that lock waits and timestamps can be
// driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

type (
	// Clock abstracts time operations.
	Clock interface {
		// Now returns the current time.
		Now() time.Time

		// After waits for the duration to elapse and then sends the current time.
		After(d time.Duration) <-chan time.Time
	}

	// Real implements Clock using the system time.
	Real struct{}

	// Fake is a Clock whose time only moves when Advance or Set is called.
	Fake struct {
		mu      sync.Mutex
		current time.Time
		waiters []waiter
		slept   []time.Duration
		auto    bool
	}

	waiter struct {
		target time.Time
		ch     chan time.Time
	}
)

// Now returns the current system time.
func (Real) Now() time.Time {
	return time.Now()
}

// After returns a channel that receives the time after duration d.
func (Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// NewFake creates a Fake set to initial, or to a fixed reference time when
// initial is zero.
func NewFake(initial time.Time) *Fake {
	if initial.IsZero() {
		initial = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	return &Fake{current: initial}
}

// NewAutoFake creates a Fake whose After advances time by d immediately, so
// retry loops run without real sleeps. Requested durations are recorded.
func NewAutoFake(initial time.Time) *Fake {
	c := NewFake(initial)
	c.auto = true
	return c
}

// Now returns the current fake time.
func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives once the fake time reaches now+d.
func (c *Fake) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.slept = append(c.slept, d)
	ch := make(chan time.Time, 1)
	if c.auto && d > 0 {
		c.current = c.current.Add(d)
		c.notifyWaiters()
	}
	if d <= 0 || c.auto {
		ch <- c.current
		return ch
	}
	c.waiters = append(c.waiters, waiter{target: c.current.Add(d), ch: ch})
	return ch
}

// Slept returns every duration passed to After, in call order.
func (c *Fake) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

// Advance moves the fake time forward by d and fires any due waiters.
func (c *Fake) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	c.notifyWaiters()
}

// Set sets the fake time to t and fires any due waiters.
func (c *Fake) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
	c.notifyWaiters()
}

// notifyWaiters must be called with mu held.
func (c *Fake) notifyWaiters() {
	remaining := c.waiters[:0]
	for _, w := range c.waiters {
		if !c.current.Before(w.target) {
			select {
			case w.ch <- c.current:
			default:
			}
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
}
