// Package privilege hands files created by a server started with sudo
// back to the user who invoked it.
package privilege

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
)

// User identifies the invoking user.
type User struct {
	Username string
	UID      int
	GID      int
}

// IsRoot reports whether the process runs with euid 0.
func IsRoot() bool {
	return os.Geteuid() == 0
}

// OriginalUser returns the user behind sudo, from SUDO_USER, SUDO_UID and
// SUDO_GID, or the current user outside sudo.
func OriginalUser() (*User, error) {
	name := os.Getenv("SUDO_USER")
	if name == "" {
		u, err := user.Current()
		if err != nil {
			return nil, fmt.Errorf("failed to get current user: %w", err)
		}
		return &User{Username: u.Username, UID: os.Getuid(), GID: os.Getgid()}, nil
	}

	uidStr, gidStr := os.Getenv("SUDO_UID"), os.Getenv("SUDO_GID")
	if uidStr == "" || gidStr == "" {
		return nil, fmt.Errorf("SUDO_USER set but SUDO_UID or SUDO_GID missing")
	}
	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SUDO_UID: %w", err)
	}
	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SUDO_GID: %w", err)
	}

	return &User{Username: name, UID: uid, GID: gid}, nil
}

// HandOver chowns paths to the original user when running as root under
// sudo. It is a no-op otherwise.
func HandOver(paths ...string) error {
	if !IsRoot() || os.Getenv("SUDO_USER") == "" {
		return nil
	}

	u, err := OriginalUser()
	if err != nil {
		return fmt.Errorf("failed to detect original user: %w", err)
	}
	for _, p := range paths {
		if err := os.Chown(p, u.UID, u.GID); err != nil {
			return fmt.Errorf("failed to chown %s to %d:%d: %w", p, u.UID, u.GID, err)
		}
	}
	return nil
}
