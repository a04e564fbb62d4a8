package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/claybowl/taygency/internal/agent"
	"github.com/claybowl/taygency/internal/config"
	"github.com/claybowl/taygency/internal/secrets"
)

// NewInitCommand returns the onboarding subcommand.
func NewInitCommand() *cli.Command {
	return &cli.Command{
		Name:   "init",
		Usage:  "Initialize the Taygency home directory (~/.taygency) and the workspace",
		Action: runInit,
	}
}

func runInit(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd, slog.LevelWarn)
	root := config.HomePath()
	created := false

	for _, d := range []string{root, filepath.Join(root, "logs")} {
		if _, err := os.Stat(d); err != nil {
			if err := os.MkdirAll(d, 0o755); err != nil {
				return fmt.Errorf("create dir %s: %w", d, err)
			}
			fmt.Printf("  Created %s\n", d)
			created = true
		}
	}

	configPath := cmd.String("config")
	if _, err := os.Stat(configPath); err != nil {
		if err := os.WriteFile(configPath, []byte(defaultConfig), 0o644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("  Created %s\n", configPath)
		created = true
	}

	dotenvPath := config.DotenvPath()
	if _, err := os.Stat(dotenvPath); err != nil {
		if err := os.WriteFile(dotenvPath, []byte(defaultDotenv), 0o600); err != nil {
			return fmt.Errorf("write .env: %w", err)
		}
		fmt.Printf("  Created %s\n", dotenvPath)
		created = true
	}

	if _, keyCreated, err := secrets.GenerateKeyring(config.KeyPath()); err != nil {
		return err
	} else if keyCreated {
		fmt.Printf("  Created %s\n", config.KeyPath())
		created = true
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ws, err := openWorkspace(cfg)
	if err != nil {
		return err
	}
	defer ws.Close()
	fresh, err := agent.EnsureWorkspace(ctx, ws.files, cfg.Agent.DefaultTimezone, time.Now())
	if err != nil {
		return fmt.Errorf("initialize workspace: %w", err)
	}
	if fresh {
		fmt.Printf("  Initialized %s workspace\n", cfg.Storage.Backend)
		created = true
	}

	if !created {
		fmt.Printf("Already set up: %s is complete. Nothing to do.\n", root)
		return nil
	}

	fmt.Println(initMessage(root))
	return nil
}

const defaultConfig = `{
	// Taygency configuration

	"gateway": {
		"host": "127.0.0.1",
		"port": 18420
	},

	"storage": {
		// "dir" keeps the workspace in ~/.taygency/workspace.
		// "github" keeps it in a repository; "sqlite" in a single database file.
		"backend": "dir",
		"cache_ttl": "60s",
		"timeout": "30s"

		// "github": {
		// 	"owner": "you",
		// 	"repo": "tasks",
		// 	"branch": "main",
		// 	"token": "${{ .Env.GITHUB_TOKEN }}"
		// }
	},

	"models": {
		"default": "claude",
		"providers": {
			"claude": {
				"driver": "anthropic",
				"model": "claude-sonnet-4-20250514",
				"auth": {
					"api_key": "${{ .Env.ANTHROPIC_API_KEY }}"
				},
				"max_tokens": 4096,
				"timeout": "2m"
			}

			// Local model via Ollama (no auth required)
			// "local": {
			// 	"driver": "ollama",
			// 	"model": "llama3.1:8b",
			// 	"base_url": "http://localhost:11434"
			// }
		}
	},

	"agent": {
		"max_iterations": 20,
		"recent_tasks": 5,
		"default_timezone": "America/Chicago"
	},

	"trace": {
		"persist": true
	},

	"events": {
		"buffer_size": 1024
	}
}
`

const defaultDotenv = `# Taygency environment variables
# This file is loaded automatically. Existing env vars are never overridden.
# Store secrets encrypted with: taygency secret set ANTHROPIC_API_KEY

# ANTHROPIC_API_KEY=sk-ant-...
# OPENAI_API_KEY=sk-...
# GITHUB_TOKEN=ghp_...
`

func initMessage(root string) string {
	return fmt.Sprintf(`
  Taygency is set up at %s

  Next steps:
    1. Store your API key: taygency secret set ANTHROPIC_API_KEY
    2. Tweak %s/config.jsonc if you feel like it
    3. Try it: taygency ask "remind me to call the dentist tomorrow"
    4. Run the gateway: taygency serve
`, root, root)
}
