package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/claybowl/taygency/internal/config"
	"github.com/claybowl/taygency/internal/heartbeat"
)

// NewStatusCommand returns the status subcommand.
func NewStatusCommand() *cli.Command {
	return &cli.Command{
		Name:   "status",
		Usage:  "Report whether a gateway server is running",
		Action: runStatus,
	}
}

func runStatus(_ context.Context, _ *cli.Command) error {
	status, hb, err := heartbeat.Check(config.HeartbeatPath(), 2*heartbeat.DefaultInterval, time.Now())
	if err != nil {
		return fmt.Errorf("check heartbeat: %w", err)
	}
	fmt.Printf("Gateway: %s\n", status)
	if hb == nil {
		return nil
	}
	fmt.Printf("  pid:      %d\n", hb.PID)
	fmt.Printf("  address:  %s\n", hb.Address)
	fmt.Printf("  clients:  %d\n", hb.Clients)
	fmt.Printf("  uptime:   %s\n", hb.Uptime())
	fmt.Printf("  last:     %s\n", hb.Timestamp.Format(time.RFC3339))
	return nil
}
