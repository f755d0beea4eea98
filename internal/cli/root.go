// Package cli implements the taskprof command line.
package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCmd returns the taskprof command tree.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "taskprof",
		Short: "taskprof - per-task CPU profiling for a worker pool",
		Long: `taskprof runs tasks on a pool of OS-thread-bound workers and keeps
per-function call counts, CPU time and scheduling latency, plus per-thread
stolen time. Profiling is switched on, off or left to an automatic mode
that enables it while loops are slow.

Reports and the profiling switch are served on a local admin socket:
  taskprof admin show profiling
  taskprof admin set profiling tasks on`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newServeCmd(),
		newAdminCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
