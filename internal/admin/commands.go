package admin

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/taskprof/internal/profiling"
	"github.com/coral-mesh/taskprof/internal/report"
)

// Deps are the components the admin commands report on.
type Deps struct {
	State   *profiling.State
	Table   report.RankedTable
	Names   report.Resolver
	Threads report.ThreadSource
	// Host may be nil.
	Host report.HostSteal
}

type keyword struct {
	usage string
	help  string
	level Level
}

var keywords = []keyword{
	{"help", "list the available commands", LevelUser},
	{"quit", "close the session", LevelUser},
	{"set profiling tasks {on|auto|off}", "enable/disable per-task CPU profiling", LevelAdmin},
	{"show activity", "show per-thread activity counters", LevelUser},
	{"show profiling", "show CPU profiling options", LevelUser},
}

// Commands turns command lines into report handlers.
type Commands struct {
	deps   Deps
	logger zerolog.Logger
}

// NewCommands returns the command set over deps.
func NewCommands(deps Deps, logger zerolog.Logger) *Commands {
	return &Commands{
		deps:   deps,
		logger: logger.With().Str("component", "admin").Logger(),
	}
}

// dispatch collects what a command line resolved to.
type dispatch struct {
	handler report.Handler
	quit    bool
}

// Parse resolves one command line, already split into words. quit reports
// that the session must end; h is nil in that case.
func (c *Commands) Parse(sess *Session, args []string) (h report.Handler, quit bool) {
	var d dispatch

	root := c.tree(sess, &d)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		c.logger.Debug().Err(err).Strs("args", args).Msg("Admin command failed")
		d.handler = nil
	}

	if d.quit {
		return nil, true
	}
	if d.handler == nil {
		return report.Text(c.usage(sess, true)), false
	}
	return d.handler, false
}

// tree builds a fresh command tree bound to sess and d. Flags are not
// parsed: every word is an argument.
func (c *Commands) tree(sess *Session, d *dispatch) *cobra.Command {
	node := func(use string, run func(args []string) report.Handler) *cobra.Command {
		cmd := &cobra.Command{
			Use:                use,
			Args:               cobra.ArbitraryArgs,
			DisableFlagParsing: true,
			SilenceErrors:      true,
			SilenceUsage:       true,
		}
		if run != nil {
			cmd.RunE = func(_ *cobra.Command, args []string) error {
				d.handler = run(args)
				return nil
			}
		}
		return cmd
	}
	unknown := func([]string) report.Handler { return nil }

	root := node("taskprof", unknown)
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	root.SetHelpCommand(node("help", func([]string) report.Handler {
		return report.Text(c.usage(sess, false))
	}))

	quit := node("quit", nil)
	quit.RunE = func(*cobra.Command, []string) error {
		d.quit = true
		return nil
	}

	show := node("show", unknown)
	show.AddCommand(
		node("profiling", func([]string) report.Handler {
			return report.NewProfilingReport(c.deps.State, c.deps.Table, c.deps.Names)
		}),
		node("activity", func([]string) report.Handler {
			return report.NewActivityReport(c.deps.Threads, c.deps.Host)
		}),
	)

	set := node("set", unknown)
	set.AddCommand(node("profiling", func(args []string) report.Handler {
		return c.setProfiling(sess, args)
	}))

	root.AddCommand(quit, show, set)
	return root
}

// setProfiling handles "set profiling <what> <value>". Errors leave the
// mode untouched.
func (c *Commands) setProfiling(sess *Session, args []string) report.Handler {
	if err := sess.Require(LevelAdmin); err != nil {
		return report.Text("Permission denied\n")
	}
	if len(args) < 1 || args[0] != "tasks" {
		return report.Text("Expects 'tasks'.\n")
	}

	var value string
	if len(args) > 1 {
		value = args[1]
	}
	req, err := profiling.ParseRequest(value)
	if err != nil {
		return report.Text("Expects 'on', 'auto', or 'off'.\n")
	}

	old := c.deps.State.Mode()
	mode := c.deps.State.SetTasks(req)
	c.logger.Info().
		Str("session", sess.ID.String()).
		Stringer("request", req).
		Stringer("old", old).
		Stringer("new", mode).
		Msg("Task profiling mode changed")

	return report.Text("")
}

// usage lists the commands available to sess.
func (c *Commands) usage(sess *Session, unknown bool) string {
	var b strings.Builder
	if unknown {
		b.WriteString("Unknown command. Please enter one of the following commands only:\n")
	} else {
		b.WriteString("The following commands are valid at this level:\n")
	}
	for _, kw := range keywords {
		if sess.Level < kw.level {
			continue
		}
		fmt.Fprintf(&b, "  %-40s: %s\n", kw.usage, kw.help)
	}
	return b.String()
}
