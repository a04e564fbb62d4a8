package commands

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/claybowl/taygency/internal/config"
	"github.com/claybowl/taygency/internal/events"
	taygencymcp "github.com/claybowl/taygency/internal/mcp"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPServeCommand returns the mcp-serve subcommand.
func NewMCPServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp-serve",
		Usage: "Expose the Taygency tools as an MCP server (stdio)",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name:      "filter",
				UsageText: "Comma-separated tool names to expose (empty = all)",
			},
		},
		Action: runMCPServe,
	}
}

func runMCPServe(ctx context.Context, cmd *cli.Command) error {
	// stdout is the MCP stdio transport
	setupLogging(cmd, slog.LevelWarn)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ws, err := openWorkspace(cfg)
	if err != nil {
		return err
	}
	defer ws.Close()

	d, _, err := ws.dispatcher()
	if err != nil {
		return err
	}

	// Mutations made by MCP clients are kept in the event log.
	bus := events.NewBus(64)
	defer bus.Close()
	logger := events.NewLogger(filepath.Join(config.HomePath(), "logs"), bus)
	defer logger.Close()

	var filter []string
	for _, name := range strings.Split(cmd.StringArg("filter"), ",") {
		if name = strings.TrimSpace(name); name != "" {
			filter = append(filter, name)
		}
	}

	slog.Debug("starting MCP server", "filter", filter, "tools", len(d.Specs()))

	server := taygencymcp.NewMCPServer(d, bus, Version, filter)
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}
