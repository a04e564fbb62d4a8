package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/claybowl/taygency/internal/events"
	"github.com/claybowl/taygency/internal/skills"
	"github.com/claybowl/taygency/internal/storage"
	"github.com/claybowl/taygency/internal/storage/dirstore"
	"github.com/claybowl/taygency/internal/tasks"
	"github.com/claybowl/taygency/internal/tools"
	"github.com/claybowl/taygency/internal/trace"
)

// scriptedModel replays canned replies and records what it was sent.
type scriptedModel struct {
	mu      sync.Mutex
	replies []*schema.Message
	err     error
	calls   [][]*schema.Message
	tools   []*schema.ToolInfo
}

func (m *scriptedModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, input)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.replies) == 0 {
		return schema.AssistantMessage("", nil), nil
	}
	next := m.replies[0]
	m.replies = m.replies[1:]
	return next, nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (m *scriptedModel) WithTools(infos []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.mu.Lock()
	m.tools = infos
	m.mu.Unlock()
	return m, nil
}

func callTools(calls ...schema.ToolCall) *schema.Message {
	msg := schema.AssistantMessage("", calls)
	msg.ResponseMeta = &schema.ResponseMeta{
		FinishReason: "tool_calls",
		Usage:        &schema.TokenUsage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
	}
	return msg
}

func toolCall(id, name, args string) schema.ToolCall {
	return schema.ToolCall{ID: id, Type: "function", Function: schema.FunctionCall{Name: name, Arguments: args}}
}

func reply(text string) *schema.Message {
	msg := schema.AssistantMessage(text, nil)
	msg.ResponseMeta = &schema.ResponseMeta{
		FinishReason: "stop",
		Usage:        &schema.TokenUsage{PromptTokens: 150, CompletionTokens: 30, TotalTokens: 180},
	}
	return msg
}

// failingBackend rejects writes under one path prefix.
type failingBackend struct {
	storage.Backend
	prefix string
	err    error
}

func (b failingBackend) Put(ctx context.Context, p, content, version, message string) error {
	if strings.HasPrefix(p, b.prefix) {
		return b.err
	}
	return b.Backend.Put(ctx, p, content, version, message)
}

type harness struct {
	orch  *Orchestrator
	model *scriptedModel
	files *storage.FileStore
	tasks *tasks.Store
	bus   *events.Bus
}

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func newHarness(t *testing.T, backend storage.Backend, opts Options, replies ...*schema.Message) harness {
	t.Helper()
	if backend == nil {
		backend = dirstore.New(t.TempDir())
	}
	files := storage.NewFileStore(backend, storage.Options{})
	store := tasks.NewStore(files)
	registry := skills.NewRegistry(files)
	planning, err := skills.NewPlanning(store)
	if err != nil {
		t.Fatalf("NewPlanning: %v", err)
	}
	if err := registry.Register(planning.Skill()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	d, err := tools.NewDispatcher(files, store, registry, planning)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}
	m := &scriptedModel{replies: replies}
	bus := events.NewBus(64)
	t.Cleanup(bus.Close)
	if opts.Now == nil {
		opts.Now = func() time.Time { return fixedNow }
	}
	orch, err := NewOrchestrator(Deps{
		Files:      files,
		Tasks:      store,
		Skills:     registry,
		Dispatcher: d,
		Model:      m,
		Traces:     trace.NewStore(files, trace.DefaultDir),
		Bus:        bus,
	}, opts)
	if err != nil {
		t.Fatalf("NewOrchestrator: %v", err)
	}
	return harness{orch: orch, model: m, files: files, tasks: store, bus: bus}
}

func countEvents(doc *trace.Document, ev trace.Event) int {
	n := 0
	for _, e := range doc.Logs {
		if e.Event == ev {
			n++
		}
	}
	return n
}

func TestNewOrchestrator_RequiresModel(t *testing.T) {
	files := storage.NewFileStore(dirstore.New(t.TempDir()), storage.Options{})
	store := tasks.NewStore(files)
	registry := skills.NewRegistry(files)
	d, err := tools.NewDispatcher(files, store, registry, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewOrchestrator(Deps{Files: files, Tasks: store, Skills: registry, Dispatcher: d}, Options{})
	if err == nil {
		t.Fatal("expected error without a model")
	}
}

func TestRun_CreatesTask(t *testing.T) {
	h := newHarness(t, nil, Options{},
		callTools(toolCall("call_1", "create_task", `{"title":"Call the dentist","priority":"high","category":"health","due":"2025-03-15"}`)),
		reply("Added **Call the dentist** for tomorrow."),
	)
	ctx := context.Background()

	resp, err := h.orch.Run(ctx, Request{Channel: "SMS", Message: "remind me to call the dentist tomorrow"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
	if resp.Message != "Added **Call the dentist** for tomorrow." {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if len(resp.Actions) != 1 || resp.Actions[0].Type != tools.ActionTaskCreated {
		t.Fatalf("expected one task_created action, got %+v", resp.Actions)
	}
	if resp.Metadata.Channel != "sms" {
		t.Errorf("channel: got %q, want sms", resp.Metadata.Channel)
	}
	if resp.Metadata.Iterations != 2 {
		t.Errorf("iterations: got %d, want 2", resp.Metadata.Iterations)
	}
	if resp.Metadata.TokensUsed != 300 {
		t.Errorf("tokens: got %d, want 300", resp.Metadata.TokensUsed)
	}

	active, err := h.tasks.List(ctx, tasks.ListFilter{Status: tasks.StatusActive})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(active) != 1 || active[0].Title != "Call the dentist" {
		t.Fatalf("unexpected active tasks %+v", active)
	}
	if active[0].Source != "sms" {
		t.Errorf("source: got %q, want sms", active[0].Source)
	}

	// The tool result is fed back to the model with the call id.
	second := h.model.calls[1]
	last := second[len(second)-1]
	if last.Role != schema.Tool || last.ToolCallID != "call_1" {
		t.Fatalf("expected tool message for call_1, got %+v", last)
	}
	if !strings.Contains(last.Content, `"success":true`) {
		t.Errorf("unexpected tool result %s", last.Content)
	}
	if len(h.model.tools) != len(tools.Names) {
		t.Errorf("bound tools: got %d", len(h.model.tools))
	}
}

func TestRun_SystemPrompt(t *testing.T) {
	h := newHarness(t, nil, Options{CustomInstructions: "Answer in French."}, reply("Bonjour"))
	if _, err := h.orch.Run(context.Background(), Request{Channel: "voice", Message: "hi"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	system := h.model.calls[0][0]
	if system.Role != schema.System {
		t.Fatalf("first message role %q", system.Role)
	}
	for _, want := range []string{
		"Friday, March 14, 2025",
		"America/Chicago",
		"No active tasks yet.",
		"**task-capture**",
		"**create_task**",
		channelStyles["voice"],
		"Answer in French.",
	} {
		if !strings.Contains(system.Content, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if user := h.model.calls[0][1]; user.Role != schema.User || user.Content != "hi" {
		t.Errorf("unexpected user message %+v", user)
	}
}

func TestRun_ToolFailureIsRecovered(t *testing.T) {
	backend := failingBackend{
		Backend: dirstore.New(t.TempDir()),
		prefix:  "notes/",
		err:     errors.New("disk full"),
	}
	h := newHarness(t, backend, Options{},
		callTools(toolCall("call_1", "write_file", `{"path":"notes/groceries.md","content":"- milk"}`)),
		reply("I could not save the note: the disk is full."),
	)

	resp, err := h.orch.Run(context.Background(), Request{Message: "save my grocery list"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
	if len(resp.Actions) != 0 {
		t.Errorf("expected no actions, got %+v", resp.Actions)
	}

	var toolErrors []trace.Entry
	for _, e := range resp.Trace.Logs {
		if e.Event == trace.EventToolCallError {
			toolErrors = append(toolErrors, e)
		}
	}
	if len(toolErrors) != 1 {
		t.Fatalf("expected one tool_call_error, got %d", len(toolErrors))
	}
	if !strings.Contains(toolErrors[0].Message, "disk full") {
		t.Errorf("unexpected error message %q", toolErrors[0].Message)
	}

	second := h.model.calls[1]
	last := second[len(second)-1]
	if !strings.HasPrefix(last.Content, "[TOOL_ERROR]") || !strings.Contains(last.Content, "disk full") {
		t.Errorf("unexpected tool message %q", last.Content)
	}
}

func TestRun_UnknownToolIsRecovered(t *testing.T) {
	h := newHarness(t, nil, Options{},
		callTools(toolCall("call_1", "delete_everything", `{}`)),
		reply("I can't do that."),
	)
	resp, err := h.orch.Run(context.Background(), Request{Message: "wipe it"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !resp.Success || resp.Message != "I can't do that." {
		t.Fatalf("unexpected response %+v", resp)
	}
	if n := countEvents(resp.Trace, trace.EventToolCallError); n != 1 {
		t.Errorf("tool_call_error: got %d, want 1", n)
	}
}

func TestRun_IterationLimit(t *testing.T) {
	loop := func(id string) *schema.Message {
		return callTools(toolCall(id, "list_tasks", `{}`))
	}
	h := newHarness(t, nil, Options{MaxIterations: 2}, loop("a"), loop("b"), loop("c"))

	resp, err := h.orch.Run(context.Background(), Request{Message: "loop"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !resp.Metadata.IterationLimitHit {
		t.Error("expected iteration limit flag")
	}
	if resp.Metadata.Iterations != 2 || len(h.model.calls) != 2 {
		t.Errorf("iterations: got %d (%d calls), want 2", resp.Metadata.Iterations, len(h.model.calls))
	}
	if resp.Message != PartialReply {
		t.Errorf("unexpected message %q", resp.Message)
	}
	if n := countEvents(resp.Trace, trace.EventIterationLimit); n != 1 {
		t.Errorf("iteration_limit: got %d, want 1", n)
	}
}

func TestRun_IterationLimitKeepsLastText(t *testing.T) {
	first := callTools(toolCall("a", "list_tasks", `{}`))
	first.Content = "Checking your list."
	h := newHarness(t, nil, Options{MaxIterations: 1}, first)

	resp, err := h.orch.Run(context.Background(), Request{Message: "what's up"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Message != "Checking your list." {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestRun_RequestContext(t *testing.T) {
	h := newHarness(t, nil, Options{}, reply("Got it."))
	resp, err := h.orch.Run(context.Background(), Request{
		Channel: "email",
		Message: "please file this",
		Context: map[string]any{"from": "sam@example.com", "subject": "Taxes"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	system := h.model.calls[0][0].Content
	for _, want := range []string{"- from: sam@example.com", "- subject: Taxes"} {
		if !strings.Contains(system, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	first := resp.Trace.Logs[0]
	if first.Event != trace.EventRequestReceived {
		t.Fatalf("first entry %q", first.Event)
	}
	got, ok := first.Data["context"].(map[string]any)
	if !ok || got["subject"] != "Taxes" {
		t.Errorf("request_received context: got %v", first.Data["context"])
	}
}

func TestRun_EmptyReply(t *testing.T) {
	h := newHarness(t, nil, Options{}, schema.AssistantMessage("", nil))
	resp, err := h.orch.Run(context.Background(), Request{Message: "ok"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Message != DefaultReply {
		t.Errorf("unexpected message %q", resp.Message)
	}
}

func TestRun_EmptyFinalReplyAfterToolText(t *testing.T) {
	first := callTools(toolCall("a", "list_tasks", `{}`))
	first.Content = "Let me check your tasks."
	h := newHarness(t, nil, Options{}, first, reply(""))

	resp, err := h.orch.Run(context.Background(), Request{Message: "what's up"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if resp.Message != DefaultReply {
		t.Errorf("message = %q, want %q", resp.Message, DefaultReply)
	}
}

func TestRun_ModelFailureIsFatal(t *testing.T) {
	h := newHarness(t, nil, Options{})
	h.model.err = fmt.Errorf("connection refused")

	resp, err := h.orch.Run(context.Background(), Request{Message: "hello"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if resp == nil || resp.Success {
		t.Fatalf("expected failed response, got %+v", resp)
	}
	if resp.Error == "" || resp.TraceID == "" {
		t.Errorf("expected error and trace id, got %+v", resp)
	}
	if n := countEvents(resp.Trace, trace.EventError); n != 1 {
		t.Errorf("error entries: got %d, want 1", n)
	}
}

func TestRun_ExecuteSkill(t *testing.T) {
	h := newHarness(t, nil, Options{},
		callTools(toolCall("call_1", "execute_skill", `{"skill_name":"task-capture"}`)),
		reply("Captured."),
	)
	resp, err := h.orch.Run(context.Background(), Request{Message: "brain dump"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := resp.Metadata.SkillsExecuted; len(got) != 1 || got[0] != "task-capture" {
		t.Fatalf("skills executed: %v", got)
	}
	if countEvents(resp.Trace, trace.EventSkillExecutionStart) != 1 || countEvents(resp.Trace, trace.EventSkillExecutionComplete) != 1 {
		t.Error("expected skill execution entries")
	}
}

func TestRun_PersistsTrace(t *testing.T) {
	h := newHarness(t, nil, Options{}, reply("Hi!"))
	ctx := context.Background()
	resp, err := h.orch.Run(ctx, Request{Message: "hello"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	doc, err := trace.NewStore(h.files, trace.DefaultDir).Get(ctx, resp.TraceID)
	if err != nil {
		t.Fatalf("Get trace: %v", err)
	}
	if doc.Logs[0].Event != trace.EventRequestReceived {
		t.Errorf("first entry: got %s", doc.Logs[0].Event)
	}
	if n := countEvents(doc, trace.EventResponseGenerated); n != 1 {
		t.Errorf("response_generated: got %d, want 1", n)
	}
	if !h.files.Exists(ctx, MarkerPath) {
		t.Error("workspace was not initialized")
	}
}

func TestRun_PublishesEvents(t *testing.T) {
	h := newHarness(t, nil, Options{},
		callTools(toolCall("call_1", "create_task", `{"title":"Water plants"}`)),
		reply("Done."),
	)
	ch, unsubscribe := h.bus.SubscribeChan(32, events.EventAction, events.EventRunCompleted)
	defer unsubscribe()

	resp, err := h.orch.Run(context.Background(), Request{Message: "water plants"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var gotAction, gotCompleted bool
	timeout := time.After(2 * time.Second)
	for !gotAction || !gotCompleted {
		select {
		case e := <-ch:
			if e.TraceID != resp.TraceID {
				t.Errorf("event trace id %q, want %q", e.TraceID, resp.TraceID)
			}
			switch e.Type {
			case events.EventAction:
				gotAction = true
			case events.EventRunCompleted:
				gotCompleted = true
			}
		case <-timeout:
			t.Fatalf("missing events: action=%v completed=%v", gotAction, gotCompleted)
		}
	}
}
