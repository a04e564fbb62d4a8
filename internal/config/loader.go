package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/tailscale/hujson"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, expands ${{ .Env.VAR }} templates, strips
// comments and trailing commas, unmarshals it into Config, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes JSONC config bytes and applies defaults.
func Parse(data []byte) (*Config, error) {
	// Expand environment variable templates (before standardizing, since templates are in strings)
	expanded := expandEnvTemplates(string(data))

	std, err := hujson.Standardize([]byte(expanded))
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(std, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// Default returns a config with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18420
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "dir"
	}
	if cfg.Storage.CacheTTL == 0 {
		cfg.Storage.CacheTTL = Duration(60 * time.Second)
	}
	if cfg.Storage.Timeout == 0 {
		cfg.Storage.Timeout = Duration(30 * time.Second)
	}
	if cfg.Storage.GitHub.Branch == "" {
		cfg.Storage.GitHub.Branch = "main"
	}
	if cfg.Storage.Dir.Root == "" {
		cfg.Storage.Dir.Root = WorkspacePath()
	}
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = DatabasePath()
	}

	// max_iterations stays nil when absent: 0 explicitly disables the guard.
	if cfg.Agent.RecentTasks == 0 {
		cfg.Agent.RecentTasks = 5
	}
	if cfg.Agent.DefaultTimezone == "" {
		cfg.Agent.DefaultTimezone = DefaultTimezone
	}

	if cfg.Trace.Dir == "" {
		cfg.Trace.Dir = "conversations/traces"
	}
}

// DefaultTimezone is used when the workspace config cannot be read.
const DefaultTimezone = "America/Chicago"

// DefaultMaxIterations applies when max_iterations is absent.
const DefaultMaxIterations = 20
