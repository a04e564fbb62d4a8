// Package commands implements the taygency CLI.
package commands

import (
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/claybowl/taygency/internal/config"
)

// Version is stamped at build time.
var Version = "0.1.0"

// NewRootCommand returns the top-level CLI command.
func NewRootCommand() *cli.Command {
	return &cli.Command{
		Name:    "taygency",
		Usage:   "A personal task assistant you can text, call or email",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Value:   config.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
			},
		},
		Commands: []*cli.Command{
			NewInitCommand(),
			NewServeCommand(),
			NewStatusCommand(),
			NewAskCommand(),
			NewTasksCommand(),
			NewTraceCommand(),
			NewMCPServeCommand(),
			NewSecretCommand(),
		},
	}
}

// setupLogging installs a stderr text handler: debug with --debug,
// otherwise the given level.
func setupLogging(cmd *cli.Command, level slog.Level) {
	if cmd.Bool("debug") {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
