package command

import (
	"sync/atomic"
	"time"
)

// Clock hands out command identities: wall-clock nanoseconds, bumped by one
// whenever two calls would otherwise collide. Values are strictly increasing
// for the lifetime of the Clock. Safe for concurrent use.
type Clock struct {
	last atomic.Int64
	now  func() time.Time
}

// NewClock creates a clock backed by time.Now.
func NewClock() *Clock {
	return &Clock{now: time.Now}
}

// NewClockWithTime creates a clock backed by now. Used by tests.
func NewClockWithTime(now func() time.Time) *Clock {
	return &Clock{now: now}
}

// Next returns a new identity greater than every value previously returned
// or observed.
func (c *Clock) Next() int64 {
	for {
		last := c.last.Load()
		next := c.now().UnixNano()
		if next <= last {
			next = last + 1
		}
		if c.last.CompareAndSwap(last, next) {
			return next
		}
	}
}

// Observe advances the clock past id, so identities loaded from storage are
// never handed out again.
func (c *Clock) Observe(id int64) {
	for {
		last := c.last.Load()
		if id <= last || c.last.CompareAndSwap(last, id) {
			return
		}
	}
}
