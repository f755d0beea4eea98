// Package config loads the taskprof configuration file.
//
// Values come from built-in defaults, then the YAML file, then TASKPROF_*
// environment variables, and are validated last.
package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/taskprof/internal/constants"
	"github.com/coral-mesh/taskprof/internal/profiling"
)

// Config is the serve configuration.
type Config struct {
	Version   string          `yaml:"version"`
	Profiling ProfilingConfig `yaml:"profiling"`
	Workers   WorkersConfig   `yaml:"workers"`
	Admin     AdminConfig     `yaml:"admin"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ProfilingConfig configures task profiling.
type ProfilingConfig struct {
	// Tasks is the startup mode. "auto" starts in auto-off.
	Tasks TasksSetting `yaml:"tasks" env:"TASKPROF_PROFILING_TASKS"`
	// AutoUp is the average loop time above which auto profiling starts.
	AutoUp time.Duration `yaml:"auto_up" env:"TASKPROF_PROFILING_AUTO_UP"`
	// AutoDown is the average loop time below which it stops.
	AutoDown time.Duration `yaml:"auto_down" env:"TASKPROF_PROFILING_AUTO_DOWN"`
}

// WorkersConfig sizes the worker pool.
type WorkersConfig struct {
	Count     int `yaml:"count" env:"TASKPROF_WORKERS"`
	QueueSize int `yaml:"queue_size,omitempty" env:"TASKPROF_QUEUE_SIZE"`
}

// AdminConfig configures the admin socket.
type AdminConfig struct {
	Socket string `yaml:"socket" env:"TASKPROF_ADMIN_SOCKET"`
	// Level is the access level granted to admin sessions.
	Level      string `yaml:"level" env:"TASKPROF_ADMIN_LEVEL"`
	BufferSize int    `yaml:"buffer_size" env:"TASKPROF_ADMIN_BUFFER_SIZE"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"TASKPROF_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"TASKPROF_LOG_PRETTY"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Profiling: ProfilingConfig{
			Tasks:    TasksSetting(profiling.RequestAuto),
			AutoUp:   profiling.DefaultAutoUp,
			AutoDown: profiling.DefaultAutoDown,
		},
		Workers: WorkersConfig{
			Count:     constants.DefaultWorkers,
			QueueSize: constants.DefaultQueueSize,
		},
		Admin: AdminConfig{
			Socket:     constants.DefaultAdminSocket,
			Level:      "admin",
			BufferSize: constants.DefaultAdminBufferSize,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// TasksSetting is the profiling.tasks keyword. It decodes from YAML, from
// environment variables and from command-line flags with the same rules.
type TasksSetting profiling.Request

// Request returns the setting as a profiling request.
func (s TasksSetting) Request() profiling.Request { return profiling.Request(s) }

// String implements pflag.Value.
func (s *TasksSetting) String() string {
	if s == nil {
		return ""
	}
	return profiling.Request(*s).String()
}

// Set implements pflag.Value.
func (s *TasksSetting) Set(v string) error {
	return s.UnmarshalText([]byte(v))
}

// Type implements pflag.Value.
func (s *TasksSetting) Type() string { return "on|auto|off" }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *TasksSetting) UnmarshalText(text []byte) error {
	req, err := profiling.ParseRequest(string(text))
	if err != nil {
		return &TasksError{Value: string(text)}
	}
	*s = TasksSetting(req)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s TasksSetting) MarshalText() ([]byte, error) {
	return []byte(profiling.Request(s).String()), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *TasksSetting) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: 'profiling.tasks' must be a scalar", node.Line)
	}
	return s.UnmarshalText([]byte(node.Value))
}

// TasksError reports an invalid profiling.tasks keyword.
type TasksError struct {
	Value string
}

func (e *TasksError) Error() string {
	return fmt.Sprintf("'profiling.tasks' expects either 'on', 'auto', or 'off' but got '%s'.", e.Value)
}

// Unwrap makes the error match profiling.ErrUnknownRequest.
func (e *TasksError) Unwrap() error { return profiling.ErrUnknownRequest }
