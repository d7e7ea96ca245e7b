// Package vmconfig loads the optional YAML configuration file the CLI
// accepts via -config, grounded in the teacher's preference for plain
// flag-driven defaults plus the rest of the retrieval pack's use of
// gopkg.in/yaml.v2 for config structs.
package vmconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/ktstephano-labs/lama-gvm/stack"
)

// Environment selects which host environment variant the CLI constructs.
type Environment string

const (
	EnvPure   Environment = "pure"
	EnvNative Environment = "native"
)

// Config is the user-overridable knobs for a single interpreter run.
type Config struct {
	StackCapacity int         `yaml:"stack_capacity"`
	Environment   Environment `yaml:"environment"`
	TraceOnError  bool        `yaml:"trace_on_error"`
}

// Default returns the reference configuration: stack.DefaultCapacity, the
// pure environment, and trace-on-error disabled.
func Default() Config {
	return Config{
		StackCapacity: stack.DefaultCapacity,
		Environment:   EnvPure,
		TraceOnError:  false,
	}
}

// Load reads and parses a YAML config file at path, filling any field it
// doesn't set with Default()'s value. An empty path returns Default()
// directly.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	// Start from the defaults so an omitted field keeps its default
	// rather than zeroing out.
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if cfg.StackCapacity <= 0 {
		cfg.StackCapacity = stack.DefaultCapacity
	}
	if cfg.Environment != EnvPure && cfg.Environment != EnvNative {
		cfg.Environment = EnvPure
	}
	return cfg, nil
}
