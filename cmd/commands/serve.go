package commands

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/claybowl/taygency/internal/config"
	"github.com/claybowl/taygency/internal/events"
	"github.com/claybowl/taygency/internal/gateway"
	"github.com/claybowl/taygency/internal/heartbeat"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Taygency gateway server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
			&cli.BoolFlag{
				Name:  "event-log",
				Usage: "Append every event to logs/<trace_id>.jsonl under the home directory",
			},
		},
		Action: runServe,
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	setupLogging(cmd, slog.LevelInfo)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	if cmd.Bool("event-log") {
		logger := events.NewLogger(filepath.Join(config.HomePath(), "logs"), bus)
		defer logger.Close()
	}

	ws, err := openWorkspace(cfg)
	if err != nil {
		return err
	}
	defer ws.Close()

	orch, err := ws.orchestrator(ctx, bus)
	if err != nil {
		return err
	}

	traces := ws.traces
	if !cfg.Trace.PersistEnabled() {
		traces = nil
	}
	server := gateway.NewServer(bus, orch, ws.tasks, traces, cfg.Gateway.Host, cfg.Gateway.Port)

	hb := heartbeat.NewWriter(config.HeartbeatPath(), server.Addr(), heartbeat.WithClients(server.Clients))
	if err := hb.Start(); err != nil {
		slog.Warn("heartbeat disabled", "error", err)
	}
	defer hb.Stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
