//go:build linux

package activity

import "golang.org/x/sys/unix"

// threadCPUTime returns the CPU time consumed by the calling OS thread.
func threadCPUTime() (int64, bool) {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_THREAD_CPUTIME_ID, &ts); err != nil {
		return 0, false
	}
	return ts.Nano(), true
}

// ThreadID returns the kernel id of the calling thread.
func ThreadID() int {
	return unix.Gettid()
}
