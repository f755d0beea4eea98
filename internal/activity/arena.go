package activity

import (
	"sync/atomic"

	"github.com/coral-mesh/taskprof/internal/freqctr"
)

// Arena is a fixed set of records indexed by thread number. Each record is
// handed out once, which is what guarantees a single writer per record.
type Arena struct {
	records [MaxThreads]Record
	next    atomic.Int32
}

// NewArena returns an arena whose decaying counters use clock. A nil clock
// selects the monotonic clock.
func NewArena(clock freqctr.Clock) *Arena {
	a := &Arena{}
	for i := range a.records {
		a.records[i].stolen1s.SetClock(clock)
		a.records[i].stolen15s.SetClock(clock)
	}
	return a
}

// Acquire hands out the next free record together with its thread number.
func (a *Arena) Acquire() (int, *Record, error) {
	for {
		n := a.next.Load()
		if n >= MaxThreads {
			return -1, nil, ErrArenaFull
		}
		if a.next.CompareAndSwap(n, n+1) {
			return int(n), &a.records[n], nil
		}
	}
}

// Threads returns how many records have been handed out.
func (a *Arena) Threads() int {
	return int(a.next.Load())
}

// Record returns the record of thread tid, or nil if it was never acquired.
// The caller must not write to it.
func (a *Arena) Record(tid int) *Record {
	if tid < 0 || tid >= a.Threads() {
		return nil
	}
	return &a.records[tid]
}

// Snapshot copies every acquired record, in thread order.
func (a *Arena) Snapshot() []Stats {
	n := a.Threads()
	out := make([]Stats, n)
	for i := 0; i < n; i++ {
		out[i] = a.records[i].Snapshot(i)
	}
	return out
}
