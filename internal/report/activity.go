package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/coral-mesh/taskprof/internal/activity"
	"github.com/coral-mesh/taskprof/internal/safe"
	"github.com/coral-mesh/taskprof/internal/timefmt"
)

// ThreadSource exposes per-thread activity.
type ThreadSource interface {
	Snapshot() []activity.Stats
}

// HostSteal reports the steal time of the whole host.
type HostSteal interface {
	// Steal returns the cumulative steal time and its share of all CPU
	// time, in percent.
	Steal() (time.Duration, float64, error)
}

// CPUTimes reads host steal time from the kernel CPU accounting.
type CPUTimes struct{}

// Steal implements HostSteal.
func (CPUTimes) Steal() (time.Duration, float64, error) {
	times, err := cpu.Times(false)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get CPU times: %w", err)
	}
	if len(times) == 0 {
		return 0, 0, fmt.Errorf("no CPU times returned")
	}

	t := times[0]
	total := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
	pct := 0.0
	if total > 0 {
		pct = t.Steal / total * 100
	}
	return time.Duration(t.Steal * float64(time.Second)), pct, nil
}

// ActivityReport is the "show activity" handler.
type ActivityReport struct {
	threads ThreadSource
	host    HostSteal
}

// NewActivityReport returns a report over threads. A nil host omits the
// host steal line.
func NewActivityReport(threads ThreadSource, host HostSteal) *ActivityReport {
	return &ActivityReport{threads: threads, host: host}
}

// Step renders the report from scratch and delivers it.
func (r *ActivityReport) Step(ch Channel) bool {
	return deliver(ch, r.render())
}

func (r *ActivityReport) render() []byte {
	var b bytes.Buffer

	stats := r.threads.Snapshot()
	fmt.Fprintf(&b, "Threads                             : %d\n", len(stats))
	if r.host != nil {
		steal, pct, err := r.host.Steal()
		if err != nil {
			b.WriteString("Host steal time                     : unavailable\n")
		} else {
			fmt.Fprintf(&b, "Host steal time                     : %s (%.2f%%)\n",
				timefmt.ShortDuration(steal), pct)
		}
	}

	b.WriteString("Thread activity:\n" +
		"  thread      loops      tasks    stolen_tot   stolen_1s  stolen_15s    avg_loop\n")

	var total activity.Stats
	for _, s := range stats {
		writeThreadRow(&b, fmt.Sprintf("%d", s.Thread), s)
		total.Loops += s.Loops
		total.Tasks += s.Tasks
		total.StolenTotal += s.StolenTotal
		total.Stolen1s += s.Stolen1s
		total.Stolen15s += s.Stolen15s
		total.AvgLoopNs += s.AvgLoopNs
	}
	if len(stats) > 1 {
		total.AvgLoopNs /= uint64(len(stats))
		writeThreadRow(&b, "total", total)
	}

	return b.Bytes()
}

func writeThreadRow(b *bytes.Buffer, label string, s activity.Stats) {
	fmt.Fprintf(b, "  %-6s %10d %10d", label, s.Loops, s.Tasks)
	b.WriteString("     " + timefmt.ShortDuration(activity.StolenDuration(s.StolenTotal)))
	b.WriteString("   " + timefmt.ShortDuration(activity.StolenDuration(s.Stolen1s)))
	b.WriteString("   " + timefmt.ShortDuration(activity.StolenDuration(s.Stolen15s)))
	b.WriteString("   " + timefmt.ShortDuration(safe.Nanoseconds(s.AvgLoopNs)) + "\n")
}
