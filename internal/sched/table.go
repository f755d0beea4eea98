// Package sched runs tasks on a pool of worker threads and keeps a
// histogram of how often each task is called and how long it takes.
package sched

import (
	"encoding/binary"
	"slices"
	"sync/atomic"

	"github.com/zeebo/xxh3"
)

// TableSize is the number of slots of the activity table.
const TableSize = 256

// Entry is one slot of the activity table. All fields are updated with
// independent atomic operations: a reader may see calls from one update and
// times from the next.
type Entry struct {
	identity atomic.Uintptr
	calls    atomic.Uint64
	cpuTime  atomic.Uint64 // ns
	latTime  atomic.Uint64 // ns
}

// Attach binds the entry to id if it is free. It reports whether the entry
// is now bound to id.
func (e *Entry) Attach(id uintptr) bool {
	if e.identity.CompareAndSwap(0, id) {
		return true
	}
	return e.identity.Load() == id
}

// Record accounts one call that ran for cpuNs after waiting latNs.
func (e *Entry) Record(cpuNs, latNs uint64) {
	e.Add(1, cpuNs, latNs)
}

// Add accounts calls calls at once.
func (e *Entry) Add(calls, cpuNs, latNs uint64) {
	e.calls.Add(calls)
	e.cpuTime.Add(cpuNs)
	e.latTime.Add(latNs)
}

func (e *Entry) reset() {
	e.calls.Store(0)
	e.cpuTime.Store(0)
	e.latTime.Store(0)
	e.identity.Store(0)
}

// Stat is a copy of an Entry.
type Stat struct {
	Slot     int
	Identity uintptr
	Calls    uint64
	CPUTime  uint64 // ns
	LatTime  uint64 // ns
}

// AvgCPU returns the mean run time per call, 0 without calls.
func (s Stat) AvgCPU() uint64 {
	if s.Calls == 0 {
		return 0
	}
	return s.CPUTime / s.Calls
}

// AvgLat returns the mean queueing latency per call, 0 without calls.
func (s Stat) AvgLat() uint64 {
	if s.Calls == 0 {
		return 0
	}
	return s.LatTime / s.Calls
}

// Table is a fixed-size hash table of per-callable statistics. Slot 0
// collects everything that cannot get a slot of its own: calls without
// identity, identities hashing to 0 and identities whose slot is taken.
// There is no probing; the table trades attribution precision for lock-free
// O(1) updates.
type Table struct {
	entries [TableSize]Entry
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{}
}

// SlotIndex returns the home slot of id.
func SlotIndex(id uintptr) int {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(id))
	return int(xxh3.Hash(b[:]) % TableSize)
}

// Entry returns the entry to account calls of id in.
func (t *Table) Entry(id uintptr) *Entry {
	if id == 0 {
		return &t.entries[0]
	}
	i := SlotIndex(id)
	if i == 0 {
		return &t.entries[0]
	}
	e := &t.entries[i]
	if e.Attach(id) {
		return e
	}
	return &t.entries[0]
}

// Slot returns slot i directly.
func (t *Table) Slot(i int) *Entry {
	return &t.entries[i]
}

// Reset clears every slot. Concurrent updates may survive partially.
func (t *Table) Reset() {
	for i := range t.entries {
		t.entries[i].reset()
	}
}

// Snapshot copies every slot, in slot order. The copy is not atomic as a
// whole.
func (t *Table) Snapshot() []Stat {
	out := make([]Stat, TableSize)
	for i := range t.entries {
		e := &t.entries[i]
		out[i] = Stat{
			Slot:     i,
			Identity: e.identity.Load(),
			Calls:    e.calls.Load(),
			CPUTime:  e.cpuTime.Load(),
			LatTime:  e.latTime.Load(),
		}
	}
	return out
}

// SnapshotAndRank copies the table and sorts the copy by decreasing number
// of calls, keeping slot order among equal counts. The live table is never
// held while sorting.
func (t *Table) SnapshotAndRank() []Stat {
	stats := t.Snapshot()
	slices.SortStableFunc(stats, func(a, b Stat) int {
		switch {
		case a.Calls > b.Calls:
			return -1
		case a.Calls < b.Calls:
			return 1
		default:
			return 0
		}
	})
	return stats
}
