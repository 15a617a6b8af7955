// Package config loads the assistant's application configuration. Memory
// tuning lives in its own JSON sidecar owned by the memory package; this file
// covers the knobs a user sets once: which provider, which model, where data
// goes.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration, read from ~/.mira/config.yaml.
type Config struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	DataDir  string `yaml:"data_dir"`
}

// Default returns the configuration used when no config file exists.
func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Provider: "ollama",
		Model:    "",
		DataDir:  filepath.Join(home, ".mira", "memory"),
	}
}

// DefaultPath returns the expected config file location.
func DefaultPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".mira", "config.yaml")
}

// Load reads the config at path, filling unset fields from the defaults. A
// missing file is not an error; a malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = Default().DataDir
	}
	if cfg.Provider == "" {
		cfg.Provider = "ollama"
	}
	return cfg, nil
}
