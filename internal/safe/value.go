// Package safe provides checked conversions and guarded file access.
package safe

import (
	"math"
	"time"
)

// Uint64ToInt64 converts val to int64, clamping to math.MaxInt64.
// The boolean reports whether clamping occurred.
func Uint64ToInt64(val uint64) (int64, bool) {
	if val > math.MaxInt64 {
		return math.MaxInt64, true
	}
	return int64(val), false
}

// Nanoseconds converts an unsigned nanosecond counter to a duration,
// saturating instead of wrapping negative.
func Nanoseconds(ns uint64) time.Duration {
	v, _ := Uint64ToInt64(ns)
	return time.Duration(v)
}
