package errors

import (
	"bytes"
	"errors"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCloser struct {
	err    error
	closed bool
}

func (s *stubCloser) Close() error {
	s.closed = true
	return s.err
}

func TestDeferClose(t *testing.T) {
	tests := []struct {
		name       string
		closer     *stubCloser
		wantLogged bool
	}{
		{name: "successful close", closer: &stubCloser{}},
		{name: "close error is logged", closer: &stubCloser{err: net.ErrClosed}, wantLogged: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			DeferClose(zerolog.New(&buf), tt.closer, "failed to close listener")

			assert.True(t, tt.closer.closed)
			if tt.wantLogged {
				assert.Contains(t, buf.String(), "failed to close listener")
				assert.Contains(t, buf.String(), `"level":"warn"`)
			} else {
				assert.Zero(t, buf.Len())
			}
		})
	}

	t.Run("nil closer", func(t *testing.T) {
		var buf bytes.Buffer
		assert.NotPanics(t, func() { DeferClose(zerolog.New(&buf), nil, "unused") })
		assert.Zero(t, buf.Len())
	})
}

func TestMust(t *testing.T) {
	assert.NotPanics(t, func() { Must(nil, "init") })

	defer func() {
		r := recover()
		require.NotNil(t, r)
		assert.Equal(t, "init arena: arena full", r)
	}()
	Must(errors.New("arena full"), "init arena")
}
