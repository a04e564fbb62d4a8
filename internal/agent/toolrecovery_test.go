package agent

import (
	"errors"
	"strings"
	"testing"
)

func TestFormatToolError(t *testing.T) {
	got := formatToolError("write_file", errors.New("disk full"))
	if !strings.HasPrefix(got, "[TOOL_ERROR]") {
		t.Fatalf("expected TOOL_ERROR marker, got: %s", got)
	}
	if !strings.Contains(got, `Tool "write_file" failed: disk full`) {
		t.Errorf("expected tool name and error text, got: %s", got)
	}
}
