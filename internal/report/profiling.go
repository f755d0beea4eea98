package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/coral-mesh/taskprof/internal/profiling"
	"github.com/coral-mesh/taskprof/internal/sched"
	"github.com/coral-mesh/taskprof/internal/timefmt"
)

// nameColumns is shared by the function name and its call count. Long
// names are usually those of rarely called functions; they push the count
// to the right rather than being cut, keeping at least one space.
const nameColumns = 35

// Resolver names callable identities.
type Resolver interface {
	Resolve(id uintptr) string
}

// ModeSource exposes the current profiling mode.
type ModeSource interface {
	Mode() profiling.Mode
}

// RankedTable produces ranked copies of the activity table.
type RankedTable interface {
	SnapshotAndRank() []sched.Stat
}

// ProfilingReport is the "show profiling" handler.
type ProfilingReport struct {
	mode  ModeSource
	table RankedTable
	names Resolver
}

// NewProfilingReport returns a report over mode, table and names.
func NewProfilingReport(mode ModeSource, table RankedTable, names Resolver) *ProfilingReport {
	return &ProfilingReport{mode: mode, table: table, names: names}
}

// Step renders the report from scratch and delivers it.
func (r *ProfilingReport) Step(ch Channel) bool {
	return deliver(ch, RenderProfiling(r.mode.Mode(), r.table.SnapshotAndRank(), r.names))
}

// RenderProfiling formats the profiling report for mode and a ranked table
// snapshot. Rows stop at the first entry without calls.
func RenderProfiling(mode profiling.Mode, ranked []sched.Stat, names Resolver) []byte {
	var b bytes.Buffer

	fmt.Fprintf(&b, "Per-task CPU profiling              : %s      # set profiling tasks {on|auto|off}\n", mode)
	b.WriteString("Tasks activity:\n" +
		"  function                      calls   cpu_tot   cpu_avg   lat_tot   lat_avg\n")

	for _, s := range ranked {
		if s.Calls == 0 {
			break
		}

		name := "other"
		if s.Identity != 0 {
			name = names.Resolve(s.Identity)
		}

		calls := strconv.FormatUint(s.Calls, 10)
		pad := nameColumns - len(name) - len(calls)
		if pad < 1 {
			pad = 1
		}
		b.WriteString("  " + name + strings.Repeat(" ", pad) + calls)

		b.WriteString("   " + timefmt.Short(s.CPUTime))
		b.WriteString("   " + timefmt.Short(s.CPUTime/s.Calls))
		b.WriteString("   " + timefmt.Short(s.LatTime))
		b.WriteString("   " + timefmt.Short(s.LatTime/s.Calls) + "\n")
	}

	return b.Bytes()
}
