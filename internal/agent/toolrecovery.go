package agent

import (
	"fmt"

	"github.com/claybowl/taygency/internal/models"
)

// emptyToolResult replaces an empty tool result; some providers reject
// tool messages without content.
const emptyToolResult = "[OK]"

// formatToolError builds the tool result sent back to the model when a
// call fails, so it can retry, pick another tool, or tell the user.
func formatToolError(toolName string, err error) string {
	return fmt.Sprintf(
		`%s Tool %q failed: %s
You can retry with different parameters, or inform the user about the issue.`,
		models.ToolErrorMarker, toolName, err,
	)
}
