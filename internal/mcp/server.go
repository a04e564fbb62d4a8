package mcp

import (
	"context"
	"log/slog"
	"slices"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/claybowl/taygency/internal/events"
	"github.com/claybowl/taygency/internal/tools"
)

// Channel tags tasks created through MCP.
const Channel = "mcp"

// NewMCPServer creates an MCP server exposing the dispatcher's tools. If
// filter is non-empty, only the named tools are exposed. bus may be nil;
// otherwise every successful mutation is published as an action event.
func NewMCPServer(d *tools.Dispatcher, bus *events.Bus, version string, filter []string) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "taygency",
		Version: version,
	}, nil)

	for _, t := range d.Tools() {
		spec := t.Spec()
		name := string(spec.Name)
		if len(filter) > 0 && !slices.Contains(filter, name) {
			continue
		}

		server.AddTool(toolSpecToMCPTool(spec), func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			ctx = tools.ContextWithChannel(ctx, Channel)
			res, err := d.Execute(ctx, name, string(req.Params.Arguments))
			var out string
			if err == nil {
				out, err = res.JSON()
			}
			if err != nil {
				slog.Debug("mcp tool error", "tool", name, "error", err)
				return &mcpsdk.CallToolResult{
					IsError: true,
					Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: err.Error()}},
				}, nil
			}
			if a := res.Action; a != nil && bus != nil {
				bus.Publish(events.NewTypedEvent(events.SourceMCP, events.ActionPayload{
					Type:   string(a.Type),
					TaskID: a.TaskID,
					Title:  a.Title,
					Path:   a.Path,
					Skill:  a.Skill,
				}, ""))
			}
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: out}},
			}, nil
		})

		slog.Debug("mcp tool registered", "tool", name)
	}

	return server
}
