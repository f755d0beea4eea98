package testutil

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

// ManualClock is a millisecond clock moved by hand. Its Now method fits
// freqctr.Clock.
type ManualClock struct {
	ms atomic.Uint64
}

// NewManualClock returns a clock reading start.
func NewManualClock(start uint64) *ManualClock {
	c := &ManualClock{}
	c.ms.Store(start)
	return c
}

// Now returns the current reading.
func (c *ManualClock) Now() uint64 { return c.ms.Load() }

// Set moves the clock to ms.
func (c *ManualClock) Set(ms uint64) { c.ms.Store(ms) }

// Advance moves the clock forward by ms.
func (c *ManualClock) Advance(ms uint64) { c.ms.Add(ms) }

// SocketPath returns a Unix socket path short enough for sun_path, in a
// directory removed when the test ends.
func SocketPath(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp("", "tp")
	if err != nil {
		t.Fatalf("failed to create socket dir: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	return filepath.Join(dir, "admin.sock")
}
