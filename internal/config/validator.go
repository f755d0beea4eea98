package config

import (
	"fmt"
	"strings"

	"github.com/coral-mesh/taskprof/internal/activity"
	"github.com/coral-mesh/taskprof/internal/admin"
	"github.com/coral-mesh/taskprof/internal/logging"
)

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError collects every problem found by Validate.
type MultiValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no validation errors"
	case 1:
		return e.Errors[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "validation failed with %d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, err.Error())
	}
	return b.String()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []ValidationError
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if c.Version != "1" {
		add("version", "unsupported version %q, expected \"1\"", c.Version)
	}

	if c.Profiling.AutoUp <= 0 {
		add("profiling.auto_up", "must be positive")
	}
	if c.Profiling.AutoDown <= 0 {
		add("profiling.auto_down", "must be positive")
	}
	if c.Profiling.AutoDown > c.Profiling.AutoUp {
		add("profiling.auto_down", "must not exceed auto_up (%s)", c.Profiling.AutoUp)
	}

	if c.Workers.Count < 1 || c.Workers.Count > activity.MaxThreads {
		add("workers.count", "must be between 1 and %d, got %d", activity.MaxThreads, c.Workers.Count)
	}
	if c.Workers.QueueSize < 0 {
		add("workers.queue_size", "must not be negative")
	}

	if c.Admin.Socket == "" {
		add("admin.socket", "socket path is required")
	}
	if _, err := admin.ParseLevel(c.Admin.Level); err != nil {
		add("admin.level", "must be 'user', 'operator' or 'admin', got %q", c.Admin.Level)
	}
	if c.Admin.BufferSize < 1024 {
		add("admin.buffer_size", "must be at least 1024 bytes, got %d", c.Admin.BufferSize)
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "%v", err)
	}

	if len(errs) > 0 {
		return &MultiValidationError{Errors: errs}
	}
	return nil
}
