package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/coral-mesh/taskprof/internal/activity"
	"github.com/coral-mesh/taskprof/internal/admin"
	"github.com/coral-mesh/taskprof/internal/config"
	"github.com/coral-mesh/taskprof/internal/constants"
	tperrors "github.com/coral-mesh/taskprof/internal/errors"
	"github.com/coral-mesh/taskprof/internal/logging"
	"github.com/coral-mesh/taskprof/internal/profiling"
	"github.com/coral-mesh/taskprof/internal/report"
	"github.com/coral-mesh/taskprof/internal/sched"
	"github.com/coral-mesh/taskprof/internal/symbol"
)

type serveOptions struct {
	configFile   string
	tasks        config.TasksSetting
	workers      int
	socket       string
	demoLoad     bool
	demoInterval time.Duration
}

func (o *serveOptions) register(fs *pflag.FlagSet) {
	fs.StringVar(&o.configFile, "config", "", "Path to configuration file (default: "+constants.DefaultConfigPath+")")
	fs.Var(&o.tasks, "profiling-tasks", "Startup task profiling mode (on, auto or off)")
	fs.IntVar(&o.workers, "workers", 0, "Number of worker threads (overrides config)")
	fs.StringVar(&o.socket, "socket", "", "Admin socket path (overrides config)")
	fs.BoolVar(&o.demoLoad, "demo-load", false, "Submit a synthetic task mix")
	fs.DurationVar(&o.demoInterval, "demo-interval", constants.DefaultDemoInterval, "Interval between synthetic task batches")
}

// apply overrides cfg with the flags that were set.
func (o *serveOptions) apply(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("profiling-tasks") {
		cfg.Profiling.Tasks = o.tasks
	}
	if fs.Changed("workers") {
		cfg.Workers.Count = o.workers
	}
	if fs.Changed("socket") {
		cfg.Admin.Socket = o.socket
	}
	return cfg.Validate()
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the worker pool and the admin socket",
		Long: `Start the worker pool and serve the admin socket until SIGINT or SIGTERM.

With --demo-load a weighted mix of synthetic tasks keeps the workers busy
so that the reports have something to show.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Path(opts.configFile), opts.configFile != "")
			if err != nil {
				return err
			}
			if err := opts.apply(cmd.Flags(), cfg); err != nil {
				return err
			}

			logger := logging.NewWithComponent(logging.Config{
				Level:  cfg.Logging.Level,
				Pretty: cfg.Logging.Pretty,
				Output: os.Stderr,
			}, "taskprof")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, opts, logger)
		},
	}

	opts.register(cmd.Flags())
	tperrors.Must(cmd.MarkFlagFilename("config", "yaml", "yml"), "failed to mark config flag")
	return cmd
}

// runServe runs until ctx is done.
func runServe(ctx context.Context, cfg *config.Config, opts *serveOptions, logger zerolog.Logger) error {
	state := profiling.NewState(profiling.ModeOff)
	mode := state.Init(cfg.Profiling.Tasks.Request())
	logger.Info().Stringer("mode", mode).Msg("Task profiling initialized")

	ctrl := profiling.NewController(state, cfg.Profiling.AutoUp, cfg.Profiling.AutoDown, logger)
	arena := activity.NewArena(nil)
	table := sched.NewTable()
	names := symbol.NewResolver()

	pool, err := sched.NewPool(sched.Config{
		Workers:   cfg.Workers.Count,
		QueueSize: cfg.Workers.QueueSize,
	}, table, ctrl, arena, names, logger)
	if err != nil {
		return fmt.Errorf("failed to create worker pool: %w", err)
	}
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}
	defer pool.Stop()

	level, err := admin.ParseLevel(cfg.Admin.Level)
	if err != nil {
		return err
	}
	srv := admin.NewServer(admin.ServerConfig{
		Socket:     cfg.Admin.Socket,
		Level:      level,
		BufferSize: cfg.Admin.BufferSize,
	}, admin.NewCommands(admin.Deps{
		State:   state,
		Table:   table,
		Names:   names,
		Threads: arena,
		Host:    report.CPUTimes{},
	}, logger), logger)
	if err := srv.Listen(); err != nil {
		return err
	}
	defer tperrors.DeferClose(logger, srv, "Failed to close admin server")

	if opts != nil && opts.demoLoad {
		go sched.DemoLoad(ctx, pool, opts.demoInterval, logger)
	}

	logger.Info().Msg("taskprof started - waiting for shutdown signal")
	if err := srv.Serve(ctx); err != nil {
		return err
	}
	logger.Info().Msg("Shutting down")
	return nil
}
