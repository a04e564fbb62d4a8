package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/claybowl/taygency/internal/agent"
	"github.com/claybowl/taygency/internal/events"
	"github.com/claybowl/taygency/internal/trace"
)

// NewAskCommand returns the ask subcommand.
func NewAskCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "Run one message through the agent in-process and print the response",
		ArgsUsage: "<message>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "channel",
				Usage: "Channel to simulate (sms, voice, email)",
				Value: agent.DefaultChannel,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print the raw response envelope",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "Stream trace entries to stderr while the run progresses",
			},
		},
		Action: runAsk,
	}
}

func runAsk(ctx context.Context, cmd *cli.Command) error {
	message := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if message == "" {
		return fmt.Errorf("usage: taygency ask <message>")
	}
	setupLogging(cmd, slog.LevelWarn)

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()
	if cmd.Bool("verbose") {
		unsubscribe := bus.Subscribe(printTraceEntry, events.EventTraceEntry)
		defer unsubscribe()
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

	resp, runErr := orch.Run(ctx, agent.Request{Channel: cmd.String("channel"), Message: message})
	if resp == nil {
		return runErr
	}

	if cmd.Bool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
		return runErr
	}

	if resp.Message != "" {
		fmt.Println(resp.Message)
	}
	for _, a := range resp.Actions {
		fmt.Fprintf(os.Stderr, "  %s %s%s\n", a.Type, a.TaskID, actionDetail(a.Title, a.Path, a.Skill))
	}
	if resp.Trace != nil {
		printSummary(resp.TraceID, resp.Trace.Summary, resp.Metadata)
	}
	return runErr
}

func actionDetail(parts ...string) string {
	for _, p := range parts {
		if p != "" {
			return " " + p
		}
	}
	return ""
}

func printSummary(traceID string, s trace.Summary, m agent.Metadata) {
	status := "ok"
	if !s.Success {
		status = "failed"
	}
	fmt.Fprintf(os.Stderr, "trace %s: %s, %dms, %d llm calls, %d tool calls, %d tokens",
		traceID, status, s.TotalDurationMs, s.LLMCalls, s.ToolCalls, s.TokensUsed)
	if m.IterationLimitHit {
		fmt.Fprint(os.Stderr, ", iteration limit hit")
	}
	fmt.Fprintln(os.Stderr)
}

func printTraceEntry(e events.Event) {
	p, ok := events.ExtractPayload[events.TraceEntryPayload](e)
	if !ok {
		return
	}
	fmt.Fprintf(os.Stderr, "  [%-5s] %-24s +%dms %s\n", p.Level, p.Event, p.DurationMs, p.Message)
}
