// Package config holds the enumerated options from spec §6 as a Go
// struct, plus a thin YAML loader. It intentionally does nothing beyond
// type decoding: no environment variables, no validation beyond what
// engine.Open itself enforces, no live reload. Configuration file parsing
// is an external collaborator's concern; this loader exists only so an
// embedder isn't forced to build Config by hand.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Policy names the WAL durability policy in use.
type Policy string

const (
	PolicySync     Policy = "SYNC"
	PolicyBatch    Policy = "BATCH"
	PolicyAdaptive Policy = "ADAPTIVE"
)

// Config is the Go-struct form of spec §6's enumerated options.
type Config struct {
	FlushThresholdOps int `yaml:"flush_threshold_ops"`

	WALPolicy Policy `yaml:"wal_policy"`

	BatchN          int `yaml:"batch_n"`
	BatchIntervalMs int `yaml:"batch_interval_ms"`

	AdaptiveMin      int `yaml:"adaptive_min"`
	AdaptiveMax      int `yaml:"adaptive_max"`
	AdaptiveIdleMs   int `yaml:"adaptive_idle_ms"`
	AdaptiveWindowMs int `yaml:"adaptive_window_ms"`
}

// Default returns the configuration the teacher's Options.DefaultOptions
// played the same role for: sane values that make the engine usable
// out of the box.
func Default() Config {
	return Config{
		FlushThresholdOps: 1000,
		WALPolicy:         PolicySync,
		BatchN:            100,
		BatchIntervalMs:   1000,
		AdaptiveMin:       1,
		AdaptiveMax:       256,
		AdaptiveIdleMs:    50,
		AdaptiveWindowMs:  100,
	}
}

// Load reads path as YAML and overlays it onto Default(). A missing file
// is not an error: it simply yields the defaults, matching the teacher's
// pattern of an Options value that works with zero setup.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return Config{}, errors.Wrapf(err, "config: read %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, errors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, nil
}

func (c Config) BatchInterval() time.Duration {
	return time.Duration(c.BatchIntervalMs) * time.Millisecond
}

func (c Config) AdaptiveIdle() time.Duration {
	return time.Duration(c.AdaptiveIdleMs) * time.Millisecond
}

func (c Config) AdaptiveWindow() time.Duration {
	return time.Duration(c.AdaptiveWindowMs) * time.Millisecond
}
