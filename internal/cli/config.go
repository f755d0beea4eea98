package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/taskprof/internal/config"
	tperrors "github.com/coral-mesh/taskprof/internal/errors"
)

func newConfigCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
	tperrors.Must(cmd.MarkPersistentFlagFilename("config", "yaml", "yml"), "failed to mark config flag")

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(configFile)
			if _, err := config.Load(path, true); err != nil {
				return err
			}
			cmd.Printf("%s: OK\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after defaults and TASKPROF_* environment overrides.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Path(configFile), configFile != "")
			if err != nil {
				return err
			}
			data, err := config.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return cmd
}
