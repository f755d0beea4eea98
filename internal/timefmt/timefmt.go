// Package timefmt formats nanosecond quantities for fixed-width reports.
package timefmt

import (
	"fmt"
	"time"
)

// Short formats ns on seven characters with three significant digits
// followed by the largest fitting unit among ns, us, ms, s, m, h and d.
func Short(ns uint64) string {
	val := float64(ns)
	var unit string
	switch {
	case ns < 1_000:
		unit = "ns"
	case ns < 1_000_000:
		val /= 1e3
		unit = "us"
	case ns < 1_000_000_000:
		val /= 1e6
		unit = "ms"
	case ns < 60_000_000_000:
		val /= 1e9
		unit = "s"
	case ns < 3_600_000_000_000:
		val /= 60e9
		unit = "m"
	case ns < 86_400_000_000_000:
		val /= 3600e9
		unit = "h"
	default:
		val /= 86400e9
		unit = "d"
	}
	return fmt.Sprintf("%7.3g%s", val, unit)
}

// ShortDuration is Short for durations; negative values print as zero.
func ShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return Short(uint64(d))
}
