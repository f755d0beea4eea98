// Package constants defines shared configuration constants.
package constants

import "time"

var (
	// DefaultConfigPath is read when no --config flag is given.
	DefaultConfigPath = "/etc/taskprof/taskprof.yaml"

	// DefaultAdminSocket is the Unix socket of the admin interface.
	DefaultAdminSocket = "/run/taskprof/admin.sock"

	// ConfigEnvVar overrides DefaultConfigPath.
	ConfigEnvVar = "TASKPROF_CONFIG"
)

// Defaults of the serve command.
const (
	DefaultWorkers = 4

	// DefaultAdminBufferSize is the output capacity of an admin session.
	DefaultAdminBufferSize = 16 * 1024

	// DefaultQueueSize is the depth of the pool's submission queue.
	DefaultQueueSize = 1024

	DefaultDemoInterval = 10 * time.Millisecond
)

// Admin client dialing.
const (
	DialTimeout      = 2 * time.Second
	DialMaxRetries   = 3
	DialInitialDelay = 100 * time.Millisecond
)
