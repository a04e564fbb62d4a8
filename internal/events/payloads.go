package events

import (
	"encoding/json"
	"time"
)

// EventPayload is the interface all typed payloads implement.
type EventPayload interface {
	EventType() EventType
}

type RunStartedPayload struct {
	Channel string `json:"channel"`
	Message string `json:"message"`
}

func (RunStartedPayload) EventType() EventType { return EventRunStarted }

// TraceEntryPayload mirrors one tracer entry.
type TraceEntryPayload struct {
	Level      string         `json:"level"`
	Event      string         `json:"event"`
	Message    string         `json:"message"`
	DurationMs int64          `json:"duration_ms"`
	Data       map[string]any `json:"data,omitempty"`
}

func (TraceEntryPayload) EventType() EventType { return EventTraceEntry }

// ActionPayload describes one side effect of a tool call.
type ActionPayload struct {
	Type   string `json:"type"`
	TaskID string `json:"task_id,omitempty"`
	Title  string `json:"title,omitempty"`
	Path   string `json:"path,omitempty"`
	Skill  string `json:"skill,omitempty"`
}

func (ActionPayload) EventType() EventType { return EventAction }

type RunCompletedPayload struct {
	Success    bool          `json:"success"`
	Message    string        `json:"message"`
	Actions    int           `json:"actions"`
	TokensUsed int           `json:"tokens_used"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
}

func (RunCompletedPayload) EventType() EventType { return EventRunCompleted }

// NewTypedEvent builds an event for a trace from a typed payload.
func NewTypedEvent(source EventSource, payload EventPayload, traceID string) Event {
	return Event{
		ID:        generateEventID(),
		TraceID:   traceID,
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

func toMap(v any) map[string]any {
	var result map[string]any
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil
	}
	return result
}

// ExtractPayload decodes an event payload into its typed form.
func ExtractPayload[T EventPayload](e Event) (T, bool) {
	var result T
	if e.Type != result.EventType() {
		return result, false
	}
	data, err := json.Marshal(e.Payload)
	if err != nil {
		return result, false
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return result, false
	}
	return result, true
}
