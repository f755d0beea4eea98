// Package freqctr implements decaying event counters.
//
// A Counter keeps the sum of events of the current period and of the
// previous one. Reading it blends both so that the value decays smoothly
// when events stop instead of dropping to zero at period boundaries:
//
//	value = curr + prev * (period - elapsed) / period
//
// Counters are meant to be written by a single goroutine. Reads from other
// goroutines are safe but may observe the fields of a rotation in progress,
// which only skews the result of that one read.
package freqctr

import (
	"sync/atomic"
	"time"
)

// DefaultPeriodMs is the period used by Accumulate and Rate.
const DefaultPeriodMs = 1000

// Clock returns a monotonic timestamp in milliseconds.
type Clock func() uint64

var origin = time.Now()

// MonotonicMs is the default clock: milliseconds elapsed since process start.
func MonotonicMs() uint64 {
	return uint64(time.Since(origin).Milliseconds())
}

// Counter is a decaying counter. The zero value is ready to use with the
// monotonic clock.
type Counter struct {
	tick  atomic.Uint64 // start of the current period, in clock ms
	curr  atomic.Uint64
	prev  atomic.Uint64
	clock Clock
}

// New returns a counter driven by clock. A nil clock selects MonotonicMs.
func New(clock Clock) *Counter {
	c := &Counter{}
	c.SetClock(clock)
	return c
}

// SetClock replaces the counter's clock. It must be called before the
// counter is shared.
func (c *Counter) SetClock(clock Clock) {
	c.clock = clock
}

func (c *Counter) now() uint64 {
	if c.clock == nil {
		return MonotonicMs()
	}
	return c.clock()
}

// Accumulate adds v to the counter over the default one-second period.
func (c *Counter) Accumulate(v uint64) {
	c.AccumulateOverWindow(v, DefaultPeriodMs)
}

// AccumulateOverWindow adds v to the counter, rotating periods of
// windowMs milliseconds as needed. A counter must always be fed with the
// same window.
func (c *Counter) AccumulateOverWindow(v uint64, windowMs uint32) {
	period := uint64(windowMs)
	if period == 0 {
		period = DefaultPeriodMs
	}
	c.rotate(c.now(), period)
	c.curr.Store(c.curr.Load() + v)
}

func (c *Counter) rotate(now, period uint64) {
	tick := c.tick.Load()
	if now < tick {
		return
	}
	elapsed := now - tick
	if elapsed < period {
		return
	}
	if elapsed >= 2*period {
		c.prev.Store(0)
	} else {
		c.prev.Store(c.curr.Load())
	}
	c.curr.Store(0)
	c.tick.Store(now - elapsed%period)
}

// Read returns the decayed value of a counter fed with windowMs periods.
func (c *Counter) Read(windowMs uint32) uint64 {
	period := uint64(windowMs)
	if period == 0 {
		period = DefaultPeriodMs
	}

	now := c.now()
	tick := c.tick.Load()
	curr := c.curr.Load()
	prev := c.prev.Load()

	if now < tick {
		return curr + prev
	}
	elapsed := now - tick
	switch {
	case elapsed >= 2*period:
		return 0
	case elapsed >= period:
		// The current period is over but nobody rotated yet: what is in
		// curr is about to become prev.
		return curr * (2*period - elapsed) / period
	default:
		return curr + prev*(period-elapsed)/period
	}
}

// Rate returns the per-second rate of a counter fed by Accumulate.
func (c *Counter) Rate() uint64 {
	return c.Read(DefaultPeriodMs)
}

// Total returns the raw sum of the current and previous periods.
func (c *Counter) Total() uint64 {
	return c.curr.Load() + c.prev.Load()
}
