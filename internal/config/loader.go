package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/taskprof/internal/constants"
	"github.com/coral-mesh/taskprof/internal/safe"
)

// Path returns the configuration path to use: explicit when set, else
// $TASKPROF_CONFIG, else the default location.
func Path(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv(constants.ConfigEnvVar); p != "" {
		return p
	}
	return constants.DefaultConfigPath
}

// Load reads the file at path over the defaults, applies environment
// overrides and validates the result. A missing file is an error only
// when required is set.
func Load(path string, required bool) (*Config, error) {
	cfg := Default()

	data, err := safe.ReadFile(path, &safe.ReadOptions{AllowSymlinks: true})
	switch {
	case err == nil:
		if err := Parse(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML data over cfg. Unknown keys are rejected.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Marshal encodes cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
