package admin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	tperrors "github.com/coral-mesh/taskprof/internal/errors"
	"github.com/coral-mesh/taskprof/internal/privilege"
	"github.com/coral-mesh/taskprof/internal/report"
)

// ServerConfig configures the admin socket.
type ServerConfig struct {
	Socket string
	// Level is granted to every session.
	Level      Level
	BufferSize int
}

// Server accepts admin sessions on a Unix socket.
type Server struct {
	cfg      ServerConfig
	commands *Commands
	logger   zerolog.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	closed   bool
	wg       sync.WaitGroup
}

// NewServer returns a server dispatching to commands.
func NewServer(cfg ServerConfig, commands *Commands, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		commands: commands,
		logger:   logger.With().Str("component", "admin").Logger(),
		conns:    make(map[net.Conn]struct{}),
	}
}

// Listen binds the socket, replacing a stale one left by a previous run.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.cfg.Socket), 0o750); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}
	if info, err := os.Lstat(s.cfg.Socket); err == nil {
		if info.Mode()&os.ModeSocket == 0 {
			return fmt.Errorf("%s exists and is not a socket", s.cfg.Socket)
		}
		if err := os.Remove(s.cfg.Socket); err != nil {
			return fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", s.cfg.Socket)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Socket, err)
	}
	if err := os.Chmod(s.cfg.Socket, 0o660); err != nil {
		tperrors.DeferClose(s.logger, ln, "Failed to close admin listener")
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	if err := privilege.HandOver(s.cfg.Socket); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to hand the admin socket over to the sudo user")
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info().Str("socket", s.cfg.Socket).Stringer("level", s.cfg.Level).Msg("Admin socket listening")
	return nil
}

// Addr returns the socket path.
func (s *Server) Addr() string {
	return s.cfg.Socket
}

// Serve accepts sessions until ctx is done or Close is called. Listen must
// have succeeded.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("admin server is not listening")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-ctx.Done()
		_ = s.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("failed to accept admin connection: %w", err)
		}

		if !s.track(conn) {
			tperrors.DeferClose(s.logger, conn, "Failed to close admin connection")
			return nil
		}
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handle(ctx, conn)
		}()
	}
}

// Close stops accepting, ends every session and removes the socket.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closed = true
	ln := s.listener
	for conn := range s.conns {
		_ = conn.Close()
	}
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	s.wg.Wait()
	return err
}

func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, conn)
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	sess := NewSession(s.cfg.Level)
	logger := s.logger.With().Str("session", sess.ID.String()).Logger()
	logger.Debug().Stringer("level", sess.Level).Msg("Admin session opened")

	out := NewBuffer(s.cfg.BufferSize)
	flushed := make(chan struct{})
	go func() {
		defer close(flushed)
		if _, err := out.WriteTo(conn); err != nil {
			logger.Debug().Err(err).Msg("Admin session output failed")
		}
	}()
	defer func() {
		out.Close()
		<-flushed
		tperrors.DeferClose(logger, conn, "Failed to close admin connection")
		logger.Debug().Dur("duration", time.Since(sess.Started)).Msg("Admin session closed")
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		args := strings.Fields(scanner.Text())
		if len(args) == 0 {
			continue
		}

		h, quit := s.commands.Parse(sess, args)
		if quit {
			return
		}
		if !drive(ctx, h, out) || !drive(ctx, report.Text("\n"), out) {
			return
		}
	}
}

// drive steps h until it is done, waiting for room between steps. It
// returns false when the session must end.
func drive(ctx context.Context, h report.Handler, out *Buffer) bool {
	for !h.Step(out) {
		select {
		case <-out.Writable():
		case <-ctx.Done():
			return false
		}
	}
	return out.Err() == nil
}
