// Package mcp exposes the Taygency tool catalog over the Model Context Protocol.
package mcp

import (
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/claybowl/taygency/internal/tools"
)

// toolSpecToMCPTool converts a catalog entry to an mcp.Tool with JSON Schema.
func toolSpecToMCPTool(spec tools.ToolSpec) *mcpsdk.Tool {
	def := spec.Definition()

	props := make(map[string]any, len(def.InputSchema.Properties))
	for name, p := range def.InputSchema.Properties {
		props[name] = propertySchema(p)
	}

	inputSchema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(def.InputSchema.Required) > 0 {
		inputSchema["required"] = def.InputSchema.Required
	}

	return &mcpsdk.Tool{
		Name:        def.Name,
		Description: def.Description,
		InputSchema: inputSchema,
	}
}

func propertySchema(p tools.Property) map[string]any {
	prop := map[string]any{"type": p.Type}
	if p.Description != "" {
		prop["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		prop["enum"] = p.Enum
	}
	if p.Items != nil {
		prop["items"] = propertySchema(*p.Items)
	}
	return prop
}
