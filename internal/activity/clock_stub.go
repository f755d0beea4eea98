//go:build !linux

package activity

// threadCPUTime is not available on this platform; stolen time is never
// reported.
func threadCPUTime() (int64, bool) {
	return 0, false
}

// ThreadID returns 0 on platforms without a thread id.
func ThreadID() int {
	return 0
}
