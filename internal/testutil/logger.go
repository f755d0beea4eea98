package testutil

import (
	"io"
	"testing"

	"github.com/rs/zerolog"
)

// NewTestLogger returns a logger that discards everything. Loggers writing
// through t.Log are avoided: workers and sessions may log after the test
// returns.
func NewTestLogger(t testing.TB) zerolog.Logger {
	t.Helper()
	return zerolog.New(io.Discard)
}
