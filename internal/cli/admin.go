package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/coral-mesh/taskprof/internal/admin"
	"github.com/coral-mesh/taskprof/internal/config"
	"github.com/coral-mesh/taskprof/internal/constants"
	"github.com/coral-mesh/taskprof/internal/retry"
)

func newAdminCmd() *cobra.Command {
	var (
		socket     string
		configFile string
	)

	cmd := &cobra.Command{
		Use:   "admin [command...]",
		Short: "Send commands to a running server",
		Long: `Send a command to the admin socket of a running server and print the
answer. Without arguments, commands are read from stdin: an interactive
prompt when stdin is a terminal, one command per line otherwise.

Commands:
  show profiling
  show activity
  set profiling tasks {on|auto|off}
  help
  quit`,
		Example: `  taskprof admin show profiling
  taskprof admin set profiling tasks auto
  echo "show activity" | taskprof admin`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("socket") {
				socket = adminSocket(configFile)
			}

			client, err := admin.Dial(cmd.Context(), socket, constants.DialTimeout, retry.Config{
				MaxRetries:     constants.DialMaxRetries,
				InitialBackoff: constants.DialInitialDelay,
				Jitter:         0.1,
			})
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			out := cmd.OutOrStdout()
			switch {
			case len(args) > 0:
				return send(client, strings.Join(args, " "), out)
			case isTerminal(cmd.InOrStdin()):
				return interactive(client, out)
			default:
				return pipe(client, cmd.InOrStdin(), out)
			}
		},
	}

	cmd.Flags().StringVar(&socket, "socket", constants.DefaultAdminSocket, "Admin socket path")
	cmd.Flags().StringVar(&configFile, "config", "", "Read the socket path from this configuration file")
	return cmd
}

// adminSocket returns the socket configured for the server, or the
// default when the configuration cannot be read.
func adminSocket(configFile string) string {
	cfg, err := config.Load(config.Path(configFile), configFile != "")
	if err != nil {
		return constants.DefaultAdminSocket
	}
	return cfg.Admin.Socket
}

// send runs one command. A closed session is not an error.
func send(client *admin.Client, line string, out io.Writer) error {
	answer, err := client.Do(line)
	if _, werr := io.WriteString(out, answer); werr != nil {
		return werr
	}
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func pipe(client *admin.Client, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		answer, err := client.Do(line)
		if _, werr := io.WriteString(out, answer); werr != nil {
			return werr
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return scanner.Err()
}

func interactive(client *admin.Client, out io.Writer) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		HistoryFile:     historyFile(),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          out,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer func() { _ = rl.Close() }()

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("readline error: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		answer, err := client.Do(line)
		_, _ = io.WriteString(out, answer)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".taskprof_history")
}
