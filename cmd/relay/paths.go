package main

import (
	"fmt"
	"os"
	"path/filepath"

	"relay/pkg/protocol"
)

// Paths holds all resolved relay state file paths.
// Use ResolvePaths() to populate this struct with defaults + env overrides.
type Paths struct {
	RelayHome    string // ~/.relay or RELAY_HOME
	PIDPath      string // relay.pid or RELAY_PID_PATH
	ConfigPath   string // config.toml or RELAY_CONFIG_PATH
	DBPath       string // relay.db or RELAY_DB_PATH
	QueueDir     string // queue/ or RELAY_QUEUE_DIR
	ProjectsPath string // projects.yaml or RELAY_PROJECTS_PATH
}

// ResolvePaths returns all relay paths, respecting env var overrides.
// Environment variables:
//   - RELAY_HOME: base directory for all relay state (default: ~/.relay)
//   - RELAY_PID_PATH: daemon PID file (default: $RELAY_HOME/relay.pid)
//   - RELAY_CONFIG_PATH: config file (default: $RELAY_HOME/config.toml)
//   - RELAY_DB_PATH: runtime database (default: $RELAY_HOME/relay.db)
//   - RELAY_QUEUE_DIR: durable task queues (default: $RELAY_HOME/queue)
//   - RELAY_PROJECTS_PATH: project registry (default: $RELAY_HOME/projects.yaml)
//
// If RELAY_HOME is set, it becomes the base for all default paths. Specific
// env vars override both the default and the RELAY_HOME base.
func ResolvePaths() (*Paths, error) {
	home, err := resolveRelayHome()
	if err != nil {
		return nil, err
	}

	return &Paths{
		RelayHome:    home,
		PIDPath:      resolvePathWithEnv("RELAY_PID_PATH", home, "relay.pid"),
		ConfigPath:   resolvePathWithEnv("RELAY_CONFIG_PATH", home, "config.toml"),
		DBPath:       resolvePathWithEnv("RELAY_DB_PATH", home, protocol.DBFile),
		QueueDir:     resolvePathWithEnv("RELAY_QUEUE_DIR", home, protocol.QueueDir),
		ProjectsPath: resolvePathWithEnv("RELAY_PROJECTS_PATH", home, protocol.ProjectsFile),
	}, nil
}

// EnsureHome creates the relay home directory if it does not exist.
func (p *Paths) EnsureHome() error {
	if err := os.MkdirAll(p.RelayHome, 0o700); err != nil {
		return fmt.Errorf("create relay home %s: %w", p.RelayHome, err)
	}
	return nil
}

// resolveRelayHome returns the relay home directory from RELAY_HOME or
// ~/.relay.
func resolveRelayHome() (string, error) {
	if v := os.Getenv("RELAY_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, protocol.RelayDir), nil
}

// resolvePathWithEnv returns the env override if set, else base/name.
func resolvePathWithEnv(envVar, base, name string) string {
	if v := os.Getenv(envVar); v != "" {
		return v
	}
	return filepath.Join(base, name)
}
