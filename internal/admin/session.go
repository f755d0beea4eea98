// Package admin serves the administrative command interface on a Unix
// socket.
//
// Clients send one command per line. Every answer is terminated by an
// empty line so that a client knows when to stop reading. Output goes
// through a bounded Buffer; a report that does not fit waits for the
// buffer to drain and is then computed again.
package admin

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Level is the access level of a session.
type Level int

const (
	LevelUser Level = iota + 1
	LevelOperator
	LevelAdmin
)

// ErrPermissionDenied is returned when a session lacks the required level.
var ErrPermissionDenied = errors.New("permission denied")

// ParseLevel parses "user", "operator" or "admin".
func ParseLevel(s string) (Level, error) {
	switch s {
	case "user":
		return LevelUser, nil
	case "operator":
		return LevelOperator, nil
	case "admin":
		return LevelAdmin, nil
	}
	return 0, fmt.Errorf("unknown access level %q", s)
}

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelUser:
		return "user"
	case LevelOperator:
		return "operator"
	case LevelAdmin:
		return "admin"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Session is one connection to the admin socket.
type Session struct {
	ID      uuid.UUID
	Level   Level
	Started time.Time
}

// NewSession returns a session granted level.
func NewSession(level Level) *Session {
	return &Session{
		ID:      uuid.New(),
		Level:   level,
		Started: time.Now(),
	}
}

// Require returns ErrPermissionDenied unless the session has at least min.
func (s *Session) Require(min Level) error {
	if s.Level < min {
		return fmt.Errorf("%w: %s level required", ErrPermissionDenied, min)
	}
	return nil
}
