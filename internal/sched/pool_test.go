package sched

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/taskprof/internal/activity"
	"github.com/coral-mesh/taskprof/internal/profiling"
	"github.com/coral-mesh/taskprof/internal/symbol"
	"github.com/coral-mesh/taskprof/internal/testutil"
)

func newTestPool(t *testing.T, mode profiling.Mode, workers int) (*Pool, *Table, *activity.Arena) {
	t.Helper()
	table := NewTable()
	arena := activity.NewArena(nil)
	ctrl := profiling.NewController(profiling.NewState(mode), 0, 0, testutil.NewTestLogger(t))
	p, err := NewPool(Config{Workers: workers}, table, ctrl, arena, symbol.NewResolver(), testutil.NewTestLogger(t))
	require.NoError(t, err)
	return p, table, arena
}

func totalCalls(table *Table) uint64 {
	var n uint64
	for _, s := range table.Snapshot() {
		n += s.Calls
	}
	return n
}

func TestPool_MeasuresTasksWhenOn(t *testing.T) {
	p, table, arena := newTestPool(t, profiling.ModeOn, 2)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	const n = 100
	var wg sync.WaitGroup
	wg.Add(n)
	task := func() { wg.Done() }
	for i := 0; i < n; i++ {
		require.NoError(t, p.SubmitNamed(context.Background(), "unit_task", task))
	}
	wg.Wait()

	// The table update follows the task body; give workers a moment.
	require.Eventually(t, func() bool { return totalCalls(table) == n }, 2*time.Second, 5*time.Millisecond)

	id := symbol.IdentityOf(task)
	assert.Equal(t, "unit_task", p.Resolver().Resolve(id))

	require.Eventually(t, func() bool {
		var tasks uint64
		for _, s := range arena.Snapshot() {
			tasks += s.Tasks
		}
		return tasks == n
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, arena.Threads())
}

func TestPool_SkipsMeasurementWhenOff(t *testing.T) {
	p, table, _ := newTestPool(t, profiling.ModeOff, 1)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		require.NoError(t, p.Submit(context.Background(), func() { wg.Done() }))
	}
	wg.Wait()
	p.Stop()

	assert.Zero(t, totalCalls(table))
}

func TestPool_SurvivesPanickingTask(t *testing.T) {
	p, _, _ := newTestPool(t, profiling.ModeOn, 1)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	require.NoError(t, p.Submit(context.Background(), func() { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, p.Submit(context.Background(), func() { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p, _, _ := newTestPool(t, profiling.ModeOff, 1)
	require.NoError(t, p.Start(context.Background()))
	p.Stop()
	p.Stop()

	err := p.Submit(context.Background(), func() {})
	assert.ErrorIs(t, err, ErrPoolStopped)
}

func TestPool_SubmitNil(t *testing.T) {
	p, _, _ := newTestPool(t, profiling.ModeOff, 1)
	assert.Error(t, p.Submit(context.Background(), nil))
}

func TestPool_SubmitHonoursContext(t *testing.T) {
	table := NewTable()
	ctrl := profiling.NewController(profiling.NewState(profiling.ModeOff), 0, 0, testutil.NewTestLogger(t))
	p, err := NewPool(Config{Workers: 1, QueueSize: 1}, table, ctrl, activity.NewArena(nil), nil, testutil.NewTestLogger(t))
	require.NoError(t, err)

	// Not started: the queue fills up after one task.
	require.NoError(t, p.Submit(context.Background(), func() {}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Submit(ctx, func() {}), context.DeadlineExceeded)
}

func TestNewPool_InvalidWorkers(t *testing.T) {
	ctrl := profiling.NewController(profiling.NewState(profiling.ModeOff), 0, 0, testutil.NewTestLogger(t))
	for _, n := range []int{0, -1, activity.MaxThreads + 1} {
		_, err := NewPool(Config{Workers: n}, NewTable(), ctrl, activity.NewArena(nil), nil, testutil.NewTestLogger(t))
		assert.Error(t, err, "workers=%d", n)
	}
}

func TestPool_StartFailsWhenArenaIsFull(t *testing.T) {
	arena := activity.NewArena(nil)
	for i := 0; i < activity.MaxThreads-1; i++ {
		_, _, err := arena.Acquire()
		require.NoError(t, err)
	}

	ctrl := profiling.NewController(profiling.NewState(profiling.ModeOff), 0, 0, testutil.NewTestLogger(t))
	p, err := NewPool(Config{Workers: 2}, NewTable(), ctrl, arena, nil, testutil.NewTestLogger(t))
	require.NoError(t, err)

	err = p.Start(context.Background())
	assert.ErrorIs(t, err, activity.ErrArenaFull)
	p.Stop()
}

func TestDemoLoad_StopsWithContext(t *testing.T) {
	p, table, _ := newTestPool(t, profiling.ModeOn, 2)
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		DemoLoad(ctx, p, time.Millisecond, testutil.NewTestLogger(t))
		close(done)
	}()

	require.Eventually(t, func() bool { return totalCalls(table) > 0 }, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("demo load did not stop")
	}
	assert.Equal(t, "compress_response", p.Resolver().Resolve(symbol.IdentityOf(compressResponse)))
}
