package profiling

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultAutoUp is the average loop time above which a thread starts
	// profiling its tasks in automatic mode.
	DefaultAutoUp = time.Millisecond
	// DefaultAutoDown is the average loop time below which it stops.
	DefaultAutoDown = 990 * time.Microsecond
)

// Controller decides, per thread, whether tasks are measured. Workers
// consult Enabled before paying for any measurement and report their
// average loop time with Observe after each loop.
type Controller struct {
	state  *State
	mask   atomic.Uint64 // one bit per thread
	up     uint64
	down   uint64
	logger zerolog.Logger
}

// NewController returns a controller for state. Zero thresholds select the
// defaults.
func NewController(state *State, up, down time.Duration, logger zerolog.Logger) *Controller {
	if up <= 0 {
		up = DefaultAutoUp
	}
	if down <= 0 {
		down = DefaultAutoDown
	}
	return &Controller{
		state:  state,
		up:     uint64(up),
		down:   uint64(down),
		logger: logger.With().Str("component", "profiling_controller").Logger(),
	}
}

// State returns the shared word the controller follows.
func (c *Controller) State() *State {
	return c.state
}

// Enabled reports whether thread tid currently measures its tasks.
func (c *Controller) Enabled(tid int) bool {
	return c.mask.Load()&(1<<uint(tid)) != 0
}

// Mask returns the set of threads measuring their tasks.
func (c *Controller) Mask() uint64 {
	return c.mask.Load()
}

// Observe updates thread tid after a loop whose sliding average active time
// is avgLoopNs and returns whether the thread measures its tasks. In the
// automatic modes it also promotes AutoOff to AutoOn when a thread starts
// measuring and demotes AutoOn to AutoOff once none does.
func (c *Controller) Observe(tid int, avgLoopNs uint64) bool {
	bit := uint64(1) << uint(tid)
	mode := c.state.Mode()
	enabled := c.mask.Load()&bit != 0

	want := enabled
	switch mode {
	case ModeOn:
		want = true
	case ModeOff:
		want = false
	default:
		if !enabled && avgLoopNs >= c.up {
			want = true
		} else if enabled && avgLoopNs <= c.down {
			want = false
		}
	}

	if want != enabled {
		if want {
			c.mask.Or(bit)
		} else {
			c.mask.And(^bit)
		}
	}

	if !mode.Auto() {
		return want
	}
	if want && mode == ModeAutoOff {
		if c.state.CompareAndSwapMode(ModeAutoOff, ModeAutoOn) {
			c.logger.Info().
				Int("thread", tid).
				Uint64("avg_loop_ns", avgLoopNs).
				Msg("Automatic task profiling turned on")
		}
	} else if !want && mode == ModeAutoOn && c.mask.Load() == 0 {
		if c.state.CompareAndSwapMode(ModeAutoOn, ModeAutoOff) {
			c.logger.Info().
				Int("thread", tid).
				Uint64("avg_loop_ns", avgLoopNs).
				Msg("Automatic task profiling turned off")
		}
	}
	return want
}
