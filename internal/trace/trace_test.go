package trace

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"
)

// stepClock advances by step on every call.
func stepClock(start time.Time, step time.Duration) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		cur := now
		now = now.Add(step)
		return cur
	}
}

func TestDurationsFromPreviousEntry(t *testing.T) {
	tr := New(WithClock(stepClock(time.Unix(0, 0), 10*time.Millisecond)))

	a := tr.Info(EventRequestReceived, "request", nil)
	b := tr.Info(EventContextBuilt, "context", nil)
	c := tr.Info(EventResponseGenerated, "done", nil)

	for _, e := range []Entry{a, b, c} {
		if e.DurationMs != 10 {
			t.Errorf("%s: DurationMs = %d, want 10", e.Event, e.DurationMs)
		}
	}
	s := tr.Summarize()
	if s.TotalDurationMs != 30 {
		t.Errorf("TotalDurationMs = %d, want 30", s.TotalDurationMs)
	}
}

func TestSummaryCounts(t *testing.T) {
	tr := New()
	tr.Info(EventLLMRequestStart, "llm", nil)
	tr.RecordTokens(LevelInfo, EventLLMRequestComplete, "llm done", 120, nil)
	tr.Info(EventToolCallStart, "tool", map[string]any{"tool": "create_task"})
	tr.Warn(EventToolCallError, "tool failed", nil)
	tr.Info(EventLLMRequestStart, "llm", nil)
	tr.RecordTokens(LevelInfo, EventLLMRequestComplete, "llm done", 80, nil)

	s := tr.Summarize()
	if s.LLMCalls != 2 || s.ToolCalls != 1 || s.TokensUsed != 200 {
		t.Errorf("unexpected summary %+v", s)
	}
	if !s.Success {
		t.Error("a warn-level tool error must not flip success")
	}
}

func TestSuccessIffNoErrorEntry(t *testing.T) {
	levels := []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}
	r := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		tr := New()
		hasError := false
		n := r.IntN(8)
		for j := 0; j < n; j++ {
			lvl := levels[r.IntN(len(levels))]
			hasError = hasError || lvl == LevelError
			tr.Record(lvl, EventIterationComplete, "step", nil)
		}
		if got := tr.Summarize().Success; got == hasError {
			t.Fatalf("run %d: success=%v with hasError=%v", i, got, hasError)
		}
	}
}

func TestEntriesAreCopies(t *testing.T) {
	tr := New()
	data := map[string]any{"k": "v"}
	tr.Info(EventContextBuilt, "ctx", data)
	data["k"] = "changed"

	entries := tr.Entries()
	entries[0].Message = "mutated"
	if got := tr.Entries()[0]; got.Message != "ctx" || got.Data["k"] != "v" {
		t.Errorf("log was mutated through a copy: %+v", got)
	}
}

func TestSinkAndDocument(t *testing.T) {
	var got []Event
	tr := New(WithID("trace_fixed"), WithSink(func(id string, e Entry) {
		if id == "trace_fixed" {
			got = append(got, e.Event)
		}
	}))
	tr.Info(EventRequestReceived, "in", nil)
	tr.Error(EventError, "boom", nil)

	if len(got) != 2 || got[1] != EventError {
		t.Errorf("sink saw %v", got)
	}
	doc := tr.Document()
	if doc.TraceID != "trace_fixed" || len(doc.Logs) != 2 || doc.Summary.Success {
		t.Errorf("unexpected document %+v", doc)
	}
	if doc.EndTime.Before(doc.StartTime) {
		t.Error("end before start")
	}
}
