// Package activity keeps per-thread scheduling measurements.
//
// Each worker thread owns exactly one Record, obtained once from an Arena.
// Only the owner writes to it. The owner updates wide counters with a plain
// load followed by a store (no read-modify-write), so updates stay cheap on
// the hot path while concurrent readers still get well-defined, possibly
// slightly stale, values. Readers must not expect the fields of a Snapshot
// to be consistent with each other.
package activity

import (
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sys/cpu"

	"github.com/coral-mesh/taskprof/internal/freqctr"
)

const (
	// MaxThreads is the number of records an Arena holds.
	MaxThreads = 64

	// StolenUnit is the granularity of stolen time accounting.
	StolenUnit = 500 * time.Microsecond

	// StolenWindowMs is the rolling window of the long stolen time counter.
	StolenWindowMs = 15000
)

// ErrArenaFull is returned when every record of an arena is taken.
var ErrArenaFull = errors.New("activity arena is full")

// Record holds the measurements of one thread.
type Record struct {
	stolenTotal atomic.Uint64 // half-milliseconds
	stolen1s    freqctr.Counter
	stolen15s   freqctr.Counter
	loops       atomic.Uint64
	tasks       atomic.Uint64
	avgLoopNs   atomic.Uint64

	// Records sit next to each other in the arena and are written by
	// different threads.
	_ cpu.CacheLinePad
}

// ReportStolenTime accounts units half-milliseconds of stolen time. It must
// only be called by the thread owning the record.
func (r *Record) ReportStolenTime(units uint64) {
	r.stolenTotal.Store(r.stolenTotal.Load() + units)
	r.stolen1s.Accumulate(units)
	r.stolen15s.AccumulateOverWindow(units, StolenWindowMs)
}

// CountLoop records one scheduler loop that ran tasks tasks and whose
// sliding average active time is now avgNs. Owner only.
func (r *Record) CountLoop(tasks int, avgNs uint64) {
	r.loops.Store(r.loops.Load() + 1)
	if tasks > 0 {
		r.tasks.Store(r.tasks.Load() + uint64(tasks))
	}
	r.avgLoopNs.Store(avgNs)
}

// StolenTotal returns the lifetime stolen time in half-milliseconds.
func (r *Record) StolenTotal() uint64 {
	return r.stolenTotal.Load()
}

// Stats is a point-in-time copy of a Record.
type Stats struct {
	Thread      int
	StolenTotal uint64 // half-milliseconds
	Stolen1s    uint64 // half-milliseconds over the last second
	Stolen15s   uint64 // half-milliseconds over the last 15 seconds
	Loops       uint64
	Tasks       uint64
	AvgLoopNs   uint64
}

// Snapshot copies the record. Safe from any goroutine; see the package
// documentation about consistency.
func (r *Record) Snapshot(thread int) Stats {
	return Stats{
		Thread:      thread,
		StolenTotal: r.stolenTotal.Load(),
		Stolen1s:    r.stolen1s.Rate(),
		Stolen15s:   r.stolen15s.Read(StolenWindowMs),
		Loops:       r.loops.Load(),
		Tasks:       r.tasks.Load(),
		AvgLoopNs:   r.avgLoopNs.Load(),
	}
}

// StolenDuration converts half-millisecond units to a duration.
func StolenDuration(units uint64) time.Duration {
	return time.Duration(units) * StolenUnit
}
