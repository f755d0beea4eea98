package activity

import "time"

var wallOrigin = time.Now()

func monotonicNs() int64 {
	return int64(time.Since(wallOrigin))
}

// ThreadClock detects stolen time on a worker thread. The worker calls
// LeavePoll when it wakes up with work and EnterPoll before it waits again.
// Over that active period the thread should have been on a CPU all along,
// so wall time exceeding the thread's CPU time was stolen from it.
//
// The worker must be locked to its OS thread for the CPU clock to be
// meaningful. A ThreadClock is not safe for concurrent use.
type ThreadClock struct {
	rec  *Record
	wall func() int64
	cpu  func() (int64, bool)

	startWall int64
	startCPU  int64
	cpuOK     bool
}

// NewThreadClock returns a clock feeding rec from the calling thread.
func NewThreadClock(rec *Record) *ThreadClock {
	return newThreadClock(rec, monotonicNs, threadCPUTime)
}

func newThreadClock(rec *Record, wall func() int64, cpu func() (int64, bool)) *ThreadClock {
	return &ThreadClock{rec: rec, wall: wall, cpu: cpu}
}

// LeavePoll marks the start of an active period.
func (c *ThreadClock) LeavePoll() {
	c.startWall = c.wall()
	c.startCPU, c.cpuOK = c.cpu()
}

// EnterPoll ends the active period, reports any stolen time of at least
// one StolenUnit to the record and returns the wall duration of the period
// in nanoseconds.
func (c *ThreadClock) EnterPoll() int64 {
	wall := c.wall() - c.startWall
	if wall < 0 {
		wall = 0
	}
	if !c.cpuOK {
		return wall
	}
	cpuNow, ok := c.cpu()
	if !ok {
		return wall
	}
	stolen := wall - (cpuNow - c.startCPU)
	if stolen >= int64(StolenUnit) {
		c.rec.ReportStolenTime(uint64(stolen / int64(StolenUnit)))
	}
	return wall
}

// Now returns the monotonic clock used by ThreadClock, in nanoseconds.
func Now() int64 {
	return monotonicNs()
}
