// Package ratelimit throttles repetitive warnings: every event is counted but
// only the first one per interval is reported as loggable.
package ratelimit

import (
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
)

// Counter tracks a running event total and when the last log was let through.
// It is safe for concurrent use.
type Counter struct {
	interval   time.Duration
	clock      clockwork.Clock
	lastLog    atomic.Int64
	total      atomic.Uint64
	suppressed atomic.Uint64
}

// NewCounter allows one log per interval. A zero or negative interval
// disables throttling. A nil clock uses the real clock.
func NewCounter(interval time.Duration, clock clockwork.Clock) *Counter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Counter{interval: interval, clock: clock}
}

// Inc records one event. It returns the running total, the number of events
// swallowed since the previous allowed log, and whether this one may be
// logged.
func (c *Counter) Inc() (total, skipped uint64, allowed bool) {
	if c == nil {
		return 0, 0, true
	}
	total = c.total.Add(1)
	if c.interval <= 0 {
		return total, 0, true
	}
	now := c.clock.Now().UnixNano()
	last := c.lastLog.Load()
	if last != 0 && now-last < c.interval.Nanoseconds() {
		c.suppressed.Add(1)
		return total, 0, false
	}
	if !c.lastLog.CompareAndSwap(last, now) {
		c.suppressed.Add(1)
		return total, 0, false
	}
	return total, c.suppressed.Swap(0), true
}
