package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/coral-mesh/taskprof/internal/retry"
)

// Client talks to an admin socket.
type Client struct {
	conn net.Conn
	r    *bufio.Reader
}

// Dial connects to socket. A missing or refusing socket is retried
// according to cfg, which covers a server still starting up.
func Dial(ctx context.Context, socket string, timeout time.Duration, cfg retry.Config) (*Client, error) {
	var conn net.Conn
	dialer := net.Dialer{Timeout: timeout}

	err := retry.Do(ctx, cfg, func() error {
		c, err := dialer.DialContext(ctx, "unix", socket)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}, func(err error) bool {
		return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", socket, err)
	}

	return &Client{conn: conn, r: bufio.NewReader(conn)}, nil
}

// Do sends one command and returns its answer without the terminating
// empty line. After "quit" the server closes the connection and Do
// returns io.EOF.
func (c *Client) Do(command string) (string, error) {
	if _, err := io.WriteString(c.conn, strings.TrimRight(command, "\n")+"\n"); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}

	var b strings.Builder
	for {
		line, err := c.r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return b.String() + line, io.EOF
			}
			return "", fmt.Errorf("failed to read answer: %w", err)
		}
		if line == "\n" {
			return b.String(), nil
		}
		b.WriteString(line)
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
