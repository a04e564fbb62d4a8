package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

// NewTraceCommand returns the trace subcommand.
func NewTraceCommand() *cli.Command {
	return &cli.Command{
		Name:      "trace",
		Usage:     "Show a persisted run trace",
		ArgsUsage: "<trace_id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw trace document",
			},
		},
		Action: runTrace,
	}
}

func runTrace(ctx context.Context, cmd *cli.Command) error {
	id := cmd.Args().First()
	if id == "" {
		return fmt.Errorf("usage: taygency trace <trace_id>")
	}
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

	doc, err := ws.traces.Get(ctx, id)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	fmt.Printf("Trace %s (%s)\n", doc.TraceID, doc.StartTime.Format("2006-01-02 15:04:05"))
	for _, e := range doc.Logs {
		fmt.Printf("  %s [%-5s] %-24s +%dms %s", e.Timestamp.Format("15:04:05.000"), e.Level, e.Event, e.DurationMs, e.Message)
		if e.Tokens > 0 {
			fmt.Printf(" (%d tokens)", e.Tokens)
		}
		fmt.Println()
	}
	s := doc.Summary
	fmt.Printf("Summary: success=%t duration=%dms llm_calls=%d tool_calls=%d tokens=%d\n",
		s.Success, s.TotalDurationMs, s.LLMCalls, s.ToolCalls, s.TokensUsed)
	return nil
}
