// Package config loads run settings from TOML or YAML files.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds the complete tool configuration
type Config struct {
	Log LogConfig `toml:"log" yaml:"log"`
	VM  VMConfig  `toml:"vm" yaml:"vm"`
	Run RunConfig `toml:"run" yaml:"run"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level      string `toml:"level" yaml:"level"`
	Timestamps bool   `toml:"timestamps" yaml:"timestamps"`
}

// VMConfig holds execution settings
type VMConfig struct {
	Trace           bool   `toml:"trace" yaml:"trace"`
	MaxSteps        int    `toml:"max_steps" yaml:"max_steps"`
	OutputSeparator string `toml:"output_separator" yaml:"output_separator"`
}

// RunConfig holds per-run file locations. Empty paths mean stdin and no
// snapshot.
type RunConfig struct {
	Input    string `toml:"input" yaml:"input"`
	Snapshot string `toml:"snapshot" yaml:"snapshot"`
}

var logLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "warn"},
		VM:  VMConfig{OutputSeparator: "\n"},
	}
}

// Load reads path on top of Default. The decoder is chosen by extension.
func Load(path string) (*Config, error) {
	path = os.ExpandEnv(path)

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".toml":
		if _, err := toml.Decode(string(content), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	cfg.Run.Input = os.ExpandEnv(cfg.Run.Input)
	cfg.Run.Snapshot = os.ExpandEnv(cfg.Run.Snapshot)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	c.Log.Level = strings.ToLower(c.Log.Level)
	if !logLevels[c.Log.Level] {
		return fmt.Errorf("invalid log level %q", c.Log.Level)
	}
	if c.VM.MaxSteps < 0 {
		return fmt.Errorf("vm.max_steps must not be negative, got %d", c.VM.MaxSteps)
	}
	return nil
}
