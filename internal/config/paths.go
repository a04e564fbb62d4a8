package config

import (
	"os"
	"path/filepath"
)

// HomePath returns the root directory for Taygency data.
// It uses $TAYGENCY_PATH if set, otherwise defaults to ~/.taygency.
func HomePath() string {
	if v := os.Getenv("TAYGENCY_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".taygency")
	}
	return filepath.Join(home, ".taygency")
}

// ConfigPath returns the path to the config file.
func ConfigPath() string {
	return filepath.Join(HomePath(), "config.jsonc")
}

// DotenvPath returns the path to the .env file.
func DotenvPath() string {
	return filepath.Join(HomePath(), ".env")
}

// WorkspacePath returns the default root of the dir storage backend.
func WorkspacePath() string {
	return filepath.Join(HomePath(), "workspace")
}

// DatabasePath returns the default path of the sqlite storage backend.
func DatabasePath() string {
	return filepath.Join(HomePath(), "workspace.db")
}

// KeyPath returns the default age identity path.
func KeyPath() string {
	return filepath.Join(HomePath(), ".age-key")
}

// HeartbeatPath returns the liveness file written by `taygency serve`.
func HeartbeatPath() string {
	return filepath.Join(HomePath(), "serve.heartbeat.json")
}
