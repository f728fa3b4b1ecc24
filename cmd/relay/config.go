package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"relay/pkg/protocol"
)

// Config is the daemon configuration, loaded from config.toml.
type Config struct {
	// Listen is the HTTP API bind address.
	Listen string `toml:"listen"`

	// WorkerCmd is the worker launch command in argv form; the initial
	// prompt, when present, is appended as the final argument.
	WorkerCmd []string `toml:"worker_cmd"`

	// SessionTTLMinutes is the idle TTL before a session expires.
	SessionTTLMinutes int `toml:"session_ttl_minutes"`

	// SweepIntervalMinutes is how often expired sessions are swept.
	SweepIntervalMinutes int `toml:"sweep_interval_minutes"`

	// QueueRetentionDays is how long delivered tasks are retained.
	QueueRetentionDays int `toml:"queue_retention_days"`

	// OutputBuffer is the capacity of the worker output channel.
	OutputBuffer int `toml:"output_buffer"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`
}

// LoadConfig reads the TOML config at path. A missing file yields the
// defaults so a fresh install works without setup.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path is controlled by the application
	if errors.Is(err, os.ErrNotExist) {
		return withDefaults(Config{}), nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return withDefaults(cfg), nil
}

// withDefaults fills zero-valued fields with defaults.
func withDefaults(cfg Config) Config {
	if cfg.Listen == "" {
		cfg.Listen = "127.0.0.1:7171"
	}
	if len(cfg.WorkerCmd) == 0 {
		cfg.WorkerCmd = []string{"claude", "--print"}
	}
	if cfg.SessionTTLMinutes == 0 {
		cfg.SessionTTLMinutes = int(protocol.SessionTTL.Minutes())
	}
	if cfg.SweepIntervalMinutes == 0 {
		cfg.SweepIntervalMinutes = int(protocol.SweepInterval.Minutes())
	}
	if cfg.QueueRetentionDays == 0 {
		cfg.QueueRetentionDays = protocol.QueueRetentionDays
	}
	if cfg.OutputBuffer == 0 {
		cfg.OutputBuffer = 1024
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	return cfg
}

// SessionTTL returns the TTL as a duration.
func (c Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}

// SweepInterval returns the sweep interval as a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}
