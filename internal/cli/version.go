package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/taskprof/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(version.Get().String())
		},
	}
}
