// Package config loads the process-wide identifier-space and maintenance
// constants (§6 of the specification) from an optional YAML file, layered
// under the CLI flag defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables spec.md §6 calls out as compile-time or
// configuration constants.
type Config struct {
	M                int    `yaml:"m"`
	HopLimit         int    `yaml:"hop_limit"`
	PeriodMS         int    `yaml:"period_ms"`
	IdleLimitMinutes int    `yaml:"idle_limit_minutes"`
	LogLevel         string `yaml:"log_level"`
}

// Default returns the reference configuration for a small test cluster.
func Default() Config {
	return Config{
		M:                16,
		HopLimit:         32,
		PeriodMS:         750,
		IdleLimitMinutes: 30,
		LogLevel:         "info",
	}
}

// Load reads a YAML file at path and overlays it on top of Default(). An
// empty path returns Default() unchanged; this makes the config file
// optional, per the CLI contract in spec.md §6.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %q: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %q: %w", path, err)
	}
	return cfg, nil
}

// Validate enforces the invariants spec.md §9 calls out: M must be a
// multiple of 8 in [8, 64], and the derived limits must be positive.
func (c Config) Validate() error {
	if c.M < 8 || c.M > 64 || c.M%8 != 0 {
		return fmt.Errorf("config: M=%d must be a multiple of 8 in [8, 64]", c.M)
	}
	if c.HopLimit <= 0 {
		return fmt.Errorf("config: hop_limit must be positive, got %d", c.HopLimit)
	}
	if c.PeriodMS <= 0 {
		return fmt.Errorf("config: period_ms must be positive, got %d", c.PeriodMS)
	}
	if c.IdleLimitMinutes <= 0 {
		return fmt.Errorf("config: idle_limit_minutes must be positive, got %d", c.IdleLimitMinutes)
	}
	return nil
}
