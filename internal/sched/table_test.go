package sched

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// identities returns n distinct non-zero identities with distinct, non-zero
// home slots.
func identities(t *testing.T, n int) []uintptr {
	t.Helper()
	seen := map[int]bool{0: true}
	var out []uintptr
	for id := uintptr(0x1000); len(out) < n; id += 16 {
		slot := SlotIndex(id)
		if seen[slot] {
			continue
		}
		seen[slot] = true
		out = append(out, id)
	}
	return out
}

// collidingPair returns two identities sharing a non-zero home slot.
func collidingPair(t *testing.T) (uintptr, uintptr) {
	t.Helper()
	bySlot := map[int]uintptr{}
	for id := uintptr(0x1000); ; id += 16 {
		slot := SlotIndex(id)
		if slot == 0 {
			continue
		}
		if prev, ok := bySlot[slot]; ok {
			return prev, id
		}
		bySlot[slot] = id
	}
}

func TestSlotIndex_InRange(t *testing.T) {
	for id := uintptr(0); id < 10_000; id += 7 {
		slot := SlotIndex(id)
		require.GreaterOrEqual(t, slot, 0)
		require.Less(t, slot, TableSize)
	}
	assert.Equal(t, SlotIndex(0xdeadbeef), SlotIndex(0xdeadbeef))
}

func TestTable_EntryAttribution(t *testing.T) {
	tbl := NewTable()
	ids := identities(t, 2)

	tbl.Entry(ids[0]).Record(100, 10)
	tbl.Entry(ids[0]).Record(300, 30)
	tbl.Entry(ids[1]).Record(5, 1)

	stats := tbl.Snapshot()
	a := stats[SlotIndex(ids[0])]
	assert.Equal(t, ids[0], a.Identity)
	assert.Equal(t, uint64(2), a.Calls)
	assert.Equal(t, uint64(400), a.CPUTime)
	assert.Equal(t, uint64(40), a.LatTime)
	assert.Equal(t, uint64(200), a.AvgCPU())
	assert.Equal(t, uint64(20), a.AvgLat())

	b := stats[SlotIndex(ids[1])]
	assert.Equal(t, uint64(1), b.Calls)
	assert.Equal(t, uint64(0), stats[0].Calls)
}

func TestTable_CollisionsFoldIntoOther(t *testing.T) {
	tbl := NewTable()
	first, second := collidingPair(t)

	assert.Same(t, tbl.Slot(SlotIndex(first)), tbl.Entry(first))
	assert.Same(t, tbl.Slot(0), tbl.Entry(second), "occupied slot folds into slot 0")
	assert.Same(t, tbl.Slot(0), tbl.Entry(0), "no identity folds into slot 0")

	tbl.Entry(second).Record(1, 1)
	stats := tbl.Snapshot()
	assert.Equal(t, uint64(1), stats[0].Calls)
	assert.Zero(t, stats[0].Identity)
	assert.Equal(t, first, stats[SlotIndex(first)].Identity)
}

func TestTable_ConcurrentRecordsAreNotLost(t *testing.T) {
	tbl := NewTable()
	ids := identities(t, 4)

	const goroutines = 8
	const calls = 1000
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < calls; n++ {
				for _, id := range ids {
					tbl.Entry(id).Record(2, 1)
				}
			}
		}()
	}
	wg.Wait()

	stats := tbl.Snapshot()
	for _, id := range ids {
		s := stats[SlotIndex(id)]
		assert.Equal(t, uint64(goroutines*calls), s.Calls)
		assert.Equal(t, uint64(2*goroutines*calls), s.CPUTime)
	}
}

func TestTable_SnapshotAndRank(t *testing.T) {
	tbl := NewTable()
	ids := identities(t, 3)
	tbl.Entry(ids[0]).Add(10, 0, 0)
	tbl.Entry(ids[1]).Add(30, 0, 0)
	tbl.Entry(ids[2]).Add(20, 0, 0)
	tbl.Entry(0).Add(5, 0, 0)

	ranked := tbl.SnapshotAndRank()
	require.Len(t, ranked, TableSize)
	assert.Equal(t, []uint64{30, 20, 10, 5, 0}, []uint64{
		ranked[0].Calls, ranked[1].Calls, ranked[2].Calls, ranked[3].Calls, ranked[4].Calls,
	})
	assert.Equal(t, ids[1], ranked[0].Identity)
	assert.Equal(t, 0, ranked[3].Slot)

	for i := 1; i < len(ranked); i++ {
		require.GreaterOrEqual(t, ranked[i-1].Calls, ranked[i].Calls)
	}

	// Stable on a static table.
	assert.Equal(t, ranked, tbl.SnapshotAndRank())

	// The live table is untouched.
	assert.Equal(t, uint64(30), tbl.Snapshot()[SlotIndex(ids[1])].Calls)
}

func TestTable_RankKeepsSlotOrderOnTies(t *testing.T) {
	tbl := NewTable()
	ids := identities(t, 3)
	for _, id := range ids {
		tbl.Entry(id).Add(7, 0, 0)
	}

	ranked := tbl.SnapshotAndRank()
	for i := 1; i < 3; i++ {
		assert.Less(t, ranked[i-1].Slot, ranked[i].Slot)
	}
}

func TestTable_Reset(t *testing.T) {
	tbl := NewTable()
	ids := identities(t, 1)
	tbl.Entry(ids[0]).Record(1, 1)
	tbl.Reset()

	for _, s := range tbl.Snapshot() {
		assert.Zero(t, s.Calls)
		assert.Zero(t, s.Identity)
	}
}

func TestStat_AveragesWithoutCalls(t *testing.T) {
	assert.Zero(t, Stat{CPUTime: 10}.AvgCPU())
	assert.Zero(t, Stat{LatTime: 10}.AvgLat())
}
