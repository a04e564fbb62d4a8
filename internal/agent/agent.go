// Package agent is the conversation orchestrator: it prepares the workspace,
// builds the system prompt from workspace state, and drives the model through
// tool calls until it produces a reply.
package agent

import (
	"errors"
	"strings"

	"github.com/claybowl/taygency/internal/tools"
	"github.com/claybowl/taygency/internal/trace"
)

// ErrUpstream marks a run aborted by a failed model call.
var ErrUpstream = errors.New("agent: upstream failure")

// DefaultChannel is assumed when a request names no channel.
const DefaultChannel = "simulator"

// DefaultReply is sent when the model finishes without any text.
const DefaultReply = "Done. Let me know if there is anything else."

// PartialReply is sent when the iteration guard stops a run before the
// model produced any text.
const PartialReply = "I could not finish everything in one go. Here is where things stand; ask me to continue."

// Request is one inbound message, normalized by the channel adapter.
type Request struct {
	Channel string         `json:"channel"`
	Message string         `json:"message"`
	Context map[string]any `json:"context,omitempty"`
}

// Response is the outcome of one run.
type Response struct {
	Success  bool           `json:"success"`
	Message  string         `json:"message"`
	Actions  []tools.Action `json:"actions"`
	Metadata Metadata       `json:"metadata"`
	TraceID  string         `json:"traceId"`
	Error    string         `json:"error,omitempty"`

	Trace *trace.Document `json:"-"`
}

// Metadata describes how a run went.
type Metadata struct {
	Channel           string   `json:"channel"`
	TokensUsed        int      `json:"tokensUsed"`
	DurationMs        int64    `json:"durationMs"`
	Iterations        int      `json:"iterations"`
	SkillsExecuted    []string `json:"skillsExecuted"`
	IterationLimitHit bool     `json:"iterationLimitHit,omitempty"`
}

// NormalizeChannel lowercases a channel name, defaulting to the simulator.
func NormalizeChannel(ch string) string {
	ch = strings.ToLower(strings.TrimSpace(ch))
	if ch == "" {
		return DefaultChannel
	}
	return ch
}
