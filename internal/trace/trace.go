// Package trace records the structured, append-only log of one agent run and
// derives its summary.
package trace

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Level classifies an entry. Only LevelError affects the run's success.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event names one orchestrator step.
type Event string

const (
	EventRequestReceived        Event = "request_received"
	EventWorkspaceCheck         Event = "workspace_check"
	EventContextBuilt           Event = "context_built"
	EventSkillsLoaded           Event = "skills_loaded"
	EventSystemPromptBuilt      Event = "system_prompt_built"
	EventLLMRequestStart        Event = "llm_request_start"
	EventLLMRequestComplete     Event = "llm_request_complete"
	EventToolCallStart          Event = "tool_call_start"
	EventToolCallComplete       Event = "tool_call_complete"
	EventToolCallError          Event = "tool_call_error"
	EventSkillExecutionStart    Event = "skill_execution_start"
	EventSkillExecutionComplete Event = "skill_execution_complete"
	EventIterationComplete      Event = "iteration_complete"
	EventIterationLimit         Event = "iteration_limit"
	EventResponseGenerated      Event = "response_generated"
	EventError                  Event = "error"
)

// Entry is one immutable record. DurationMs is measured from the previous
// entry (the first from the tracer's start).
type Entry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Level      Level          `json:"level"`
	Event      Event          `json:"event"`
	Message    string         `json:"message"`
	DurationMs int64          `json:"durationMs"`
	Tokens     int            `json:"tokens,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Summary is derived from the entries of a run.
type Summary struct {
	TotalDurationMs int64 `json:"totalDurationMs"`
	LLMCalls        int   `json:"llmCalls"`
	ToolCalls       int   `json:"toolCalls"`
	TokensUsed      int   `json:"tokensUsed"`
	Success         bool  `json:"success"`
}

// Sink receives every entry as it is recorded.
type Sink func(traceID string, e Entry)

// Option configures a Tracer.
type Option func(*Tracer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracer) { t.now = now }
}

// WithSink adds an entry sink.
func WithSink(s Sink) Option {
	return func(t *Tracer) { t.sinks = append(t.sinks, s) }
}

// WithID sets the trace ID instead of generating one.
func WithID(id string) Option {
	return func(t *Tracer) { t.id = id }
}

// Tracer is the in-memory log of one run. It is safe for concurrent use.
type Tracer struct {
	mu      sync.Mutex
	id      string
	now     func() time.Time
	start   time.Time
	last    time.Time
	entries []Entry
	sinks   []Sink
}

// New starts a tracer.
func New(opts ...Option) *Tracer {
	t := &Tracer{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	if t.id == "" {
		t.id = NewID()
	}
	t.start = t.now()
	t.last = t.start
	return t
}

// NewID returns a fresh trace identifier.
func NewID() string {
	return "trace_" + uuid.NewString()
}

// ID returns the trace identifier.
func (t *Tracer) ID() string { return t.id }

// Record appends an entry and returns it.
func (t *Tracer) Record(level Level, event Event, message string, data map[string]any) Entry {
	return t.record(Entry{Level: level, Event: event, Message: message, Data: data})
}

// RecordTokens appends an entry carrying a token count for the summary.
func (t *Tracer) RecordTokens(level Level, event Event, message string, tokens int, data map[string]any) Entry {
	return t.record(Entry{Level: level, Event: event, Message: message, Tokens: tokens, Data: data})
}

func (t *Tracer) record(e Entry) Entry {
	t.mu.Lock()
	now := t.now()
	e.Timestamp = now
	e.DurationMs = now.Sub(t.last).Milliseconds()
	e.Data = maps.Clone(e.Data)
	t.last = now
	t.entries = append(t.entries, e)
	sinks := t.sinks
	t.mu.Unlock()

	logEntry(t.id, e)
	for _, s := range sinks {
		s(t.id, e)
	}
	return e
}

func (t *Tracer) Debug(event Event, message string, data map[string]any) Entry {
	return t.Record(LevelDebug, event, message, data)
}

func (t *Tracer) Info(event Event, message string, data map[string]any) Entry {
	return t.Record(LevelInfo, event, message, data)
}

func (t *Tracer) Warn(event Event, message string, data map[string]any) Entry {
	return t.Record(LevelWarn, event, message, data)
}

func (t *Tracer) Error(event Event, message string, data map[string]any) Entry {
	return t.Record(LevelError, event, message, data)
}

// Entries returns a copy of the log.
func (t *Tracer) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Summarize derives the run summary from the entries recorded so far.
func (t *Tracer) Summarize() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return summarize(t.entries, t.last.Sub(t.start))
}

func summarize(entries []Entry, elapsed time.Duration) Summary {
	s := Summary{TotalDurationMs: elapsed.Milliseconds(), Success: true}
	for _, e := range entries {
		switch e.Event {
		case EventLLMRequestStart:
			s.LLMCalls++
		case EventToolCallStart:
			s.ToolCalls++
		}
		s.TokensUsed += e.Tokens
		if e.Level == LevelError {
			s.Success = false
		}
	}
	return s
}

// Document is the serialized form of a finished run.
type Document struct {
	TraceID   string    `json:"traceId"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
	Logs      []Entry   `json:"logs"`
	Summary   Summary   `json:"summary"`
}

// Document snapshots the trace. EndTime is the last entry's timestamp.
func (t *Tracer) Document() Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	logs := make([]Entry, len(t.entries))
	copy(logs, t.entries)
	return Document{
		TraceID:   t.id,
		StartTime: t.start,
		EndTime:   t.last,
		Logs:      logs,
		Summary:   summarize(logs, t.last.Sub(t.start)),
	}
}

func logEntry(traceID string, e Entry) {
	var level slog.Level
	switch e.Level {
	case LevelDebug:
		level = slog.LevelDebug
	case LevelWarn:
		level = slog.LevelWarn
	case LevelError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.Log(context.Background(), level, e.Message,
		"trace_id", traceID, "event", string(e.Event), "duration_ms", e.DurationMs)
}
