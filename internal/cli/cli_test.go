package cli

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coral-mesh/taskprof/internal/admin"
	"github.com/coral-mesh/taskprof/internal/config"
	"github.com/coral-mesh/taskprof/internal/profiling"
	"github.com/coral-mesh/taskprof/internal/retry"
	"github.com/coral-mesh/taskprof/internal/testutil"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "taskprof.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "taskprof version dev")
}

func TestConfigCmd(t *testing.T) {
	good := writeConfig(t, "profiling:\n  tasks: off\nworkers:\n  count: 2\n")

	out, err := execute(t, "", "config", "validate", "--config", good)
	require.NoError(t, err)
	assert.Contains(t, out, good+": OK")

	out, err = execute(t, "", "config", "show", "--config", good)
	require.NoError(t, err)
	assert.Regexp(t, `tasks: "?off"?`, out)
	assert.Contains(t, out, "count: 2")

	bad := writeConfig(t, "profiling:\n  tasks: maybe\n")
	_, err = execute(t, "", "config", "validate", "--config", bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "'profiling.tasks' expects either 'on', 'auto', or 'off' but got 'maybe'.")
}

func TestServeOptions_Apply(t *testing.T) {
	opts := &serveOptions{}
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	opts.register(fs)
	require.NoError(t, fs.Parse([]string{"--profiling-tasks", "on", "--workers", "3"}))

	cfg := config.Default()
	require.NoError(t, opts.apply(fs, cfg))
	assert.Equal(t, profiling.RequestOn, cfg.Profiling.Tasks.Request())
	assert.Equal(t, 3, cfg.Workers.Count)
	assert.Equal(t, config.Default().Admin.Socket, cfg.Admin.Socket, "unset flags leave config alone")

	fs = pflag.NewFlagSet("serve", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	(&serveOptions{}).register(fs)
	err := fs.Parse([]string{"--profiling-tasks", "sometimes"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "but got 'sometimes'")

	fs = pflag.NewFlagSet("serve", pflag.ContinueOnError)
	opts = &serveOptions{}
	opts.register(fs)
	require.NoError(t, fs.Parse([]string{"--workers", "100"}))
	assert.Error(t, opts.apply(fs, config.Default()))
}

func startServe(t *testing.T) (string, context.CancelFunc) {
	t.Helper()

	cfg := config.Default()
	cfg.Workers.Count = 2
	cfg.Admin.Socket = testutil.SocketPath(t)
	cfg.Profiling.Tasks = config.TasksSetting(profiling.RequestOn)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runServe(ctx, cfg, &serveOptions{demoLoad: true, demoInterval: time.Millisecond}, testutil.NewTestLogger(t))
	}()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(10 * time.Second):
			t.Error("serve did not stop")
		}
	})
	return cfg.Admin.Socket, cancel
}

func TestServe_EndToEnd(t *testing.T) {
	socket, _ := startServe(t)

	ctx, cancel := testutil.NewTestContext()
	defer cancel()
	client, err := admin.Dial(ctx, socket, time.Second, retry.Config{MaxRetries: 50, InitialBackoff: 10 * time.Millisecond, MaxBackoff: 100 * time.Millisecond})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	require.Eventually(t, func() bool {
		out, err := client.Do("show profiling")
		return err == nil && strings.Count(out, "\n") > 3
	}, 10*time.Second, 20*time.Millisecond)

	out, err := client.Do("show activity")
	require.NoError(t, err)
	assert.Contains(t, out, "Threads                             : 2\n")

	_, err = client.Do("set profiling tasks off")
	require.NoError(t, err)
	out, err = client.Do("show profiling")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Per-task CPU profiling              : off "))
}

func TestAdminCmd(t *testing.T) {
	socket, _ := startServe(t)

	require.Eventually(t, func() bool {
		_, err := os.Stat(socket)
		return err == nil
	}, 10*time.Second, 10*time.Millisecond)

	out, err := execute(t, "", "admin", "--socket", socket, "show", "profiling")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Per-task CPU profiling              : on "))

	out, err = execute(t, "help\n\nshow activity\nquit\nshow profiling\n", "admin", "--socket", socket)
	require.NoError(t, err)
	assert.Contains(t, out, "The following commands are valid at this level:")
	assert.Contains(t, out, "Thread activity:")
	assert.NotContains(t, out, "Per-task CPU profiling", "commands after quit are not sent")
}
