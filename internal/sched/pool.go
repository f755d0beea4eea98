package sched

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/taskprof/internal/activity"
	"github.com/coral-mesh/taskprof/internal/freqctr"
	"github.com/coral-mesh/taskprof/internal/profiling"
	"github.com/coral-mesh/taskprof/internal/symbol"
)

const (
	// maxBatch bounds the number of tasks a worker runs per loop.
	maxBatch = 64
	// loopSamples is the depth of the sliding average of loop times.
	loopSamples = 512
)

// ErrPoolStopped is returned when submitting to a stopped pool.
var ErrPoolStopped = errors.New("pool stopped")

// Config configures a Pool.
type Config struct {
	Workers   int // 1..activity.MaxThreads
	QueueSize int // pending tasks; defaults to 1024
}

type task struct {
	fn       func()
	id       uintptr
	enqueued int64 // activity.Now() at submission
}

// Pool runs tasks on worker goroutines locked to OS threads. Each worker
// owns one activity record and measures its tasks into the shared table
// whenever the profiling controller enables it.
type Pool struct {
	cfg      Config
	table    *Table
	ctrl     *profiling.Controller
	arena    *activity.Arena
	resolver *symbol.Resolver
	logger   zerolog.Logger

	queue  chan task
	done   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

// NewPool creates a pool. Nothing runs until Start.
func NewPool(
	cfg Config,
	table *Table,
	ctrl *profiling.Controller,
	arena *activity.Arena,
	resolver *symbol.Resolver,
	logger zerolog.Logger,
) (*Pool, error) {
	if cfg.Workers < 1 || cfg.Workers > activity.MaxThreads {
		return nil, fmt.Errorf("worker count must be between 1 and %d, got %d", activity.MaxThreads, cfg.Workers)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if resolver == nil {
		resolver = symbol.NewResolver()
	}

	return &Pool{
		cfg:      cfg,
		table:    table,
		ctrl:     ctrl,
		arena:    arena,
		resolver: resolver,
		logger:   logger.With().Str("component", "sched_pool").Logger(),
		queue:    make(chan task, cfg.QueueSize),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the workers. They run until ctx is cancelled or Stop.
func (p *Pool) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	for i := 0; i < p.cfg.Workers; i++ {
		tid, rec, err := p.arena.Acquire()
		if err != nil {
			cancel()
			p.wg.Wait()
			return fmt.Errorf("failed to acquire activity record for worker %d: %w", i, err)
		}
		p.wg.Add(1)
		go p.work(ctx, tid, rec)
	}

	p.logger.Info().
		Int("workers", p.cfg.Workers).
		Int("queue_size", p.cfg.QueueSize).
		Msg("Scheduler started")
	return nil
}

// Stop stops the workers and waits for them. Queued tasks that did not
// start are dropped.
func (p *Pool) Stop() {
	p.once.Do(func() {
		close(p.done)
		if p.cancel != nil {
			p.cancel()
		}
		p.wg.Wait()
		p.logger.Info().Msg("Scheduler stopped")
	})
}

// Submit queues fn, blocking while the queue is full.
func (p *Pool) Submit(ctx context.Context, fn func()) error {
	return p.submit(ctx, symbol.IdentityOf(fn), fn)
}

// SubmitNamed queues fn and registers name as its display name.
func (p *Pool) SubmitNamed(ctx context.Context, name string, fn func()) error {
	id := symbol.IdentityOf(fn)
	p.resolver.Register(id, name)
	return p.submit(ctx, id, fn)
}

func (p *Pool) submit(ctx context.Context, id uintptr, fn func()) error {
	if fn == nil {
		return fmt.Errorf("nil task")
	}
	t := task{fn: fn, id: id, enqueued: activity.Now()}

	select {
	case <-p.done:
		return ErrPoolStopped
	default:
	}

	select {
	case <-p.done:
		return ErrPoolStopped
	case <-ctx.Done():
		return ctx.Err()
	case p.queue <- t:
		return nil
	}
}

// Resolver returns the resolver task names are registered in.
func (p *Pool) Resolver() *symbol.Resolver {
	return p.resolver
}

func (p *Pool) work(ctx context.Context, tid int, rec *activity.Record) {
	defer p.wg.Done()

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	logger := p.logger.With().Int("thread", tid).Int("os_tid", activity.ThreadID()).Logger()
	logger.Debug().Msg("Worker started")

	clock := activity.NewThreadClock(rec)
	loopTime := freqctr.NewSlidingAverage(loopSamples)
	p.ctrl.Observe(tid, 0)

	for {
		var t task
		select {
		case <-ctx.Done():
			logger.Debug().Msg("Worker stopped")
			return
		case t = <-p.queue:
		}

		clock.LeavePoll()
		measure := p.ctrl.Enabled(tid)
		ran := p.runBatch(t, measure, logger)
		active := clock.EnterPoll()

		loopTime.Add(uint64(active))
		rec.CountLoop(ran, loopTime.Avg())
		p.ctrl.Observe(tid, loopTime.Avg())
	}
}

// runBatch runs first and then whatever else is already queued, up to
// maxBatch tasks, and returns how many ran.
func (p *Pool) runBatch(first task, measure bool, logger zerolog.Logger) int {
	p.run(first, measure, logger)
	ran := 1
	for ran < maxBatch {
		select {
		case t := <-p.queue:
			p.run(t, measure, logger)
			ran++
		default:
			return ran
		}
	}
	return ran
}

func (p *Pool) run(t task, measure bool, logger zerolog.Logger) {
	if !measure {
		p.call(t, logger)
		return
	}

	start := activity.Now()
	lat := start - t.enqueued
	if lat < 0 {
		lat = 0
	}
	p.call(t, logger)
	cpu := activity.Now() - start

	p.table.Entry(t.id).Record(uint64(cpu), uint64(lat))
}

func (p *Pool) call(t task, logger zerolog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("task", p.resolver.Resolve(t.id)).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Task panicked")
		}
	}()
	t.fn()
}
