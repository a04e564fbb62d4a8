package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/claybowl/taygency/internal/events"
	"github.com/claybowl/taygency/internal/models"
	"github.com/claybowl/taygency/internal/skills"
	"github.com/claybowl/taygency/internal/storage"
	"github.com/claybowl/taygency/internal/tasks"
	"github.com/claybowl/taygency/internal/tools"
	"github.com/claybowl/taygency/internal/trace"
)

// Deps are the collaborators shared by every run. They are built once per
// process; the file store cache is shared through them.
type Deps struct {
	Files      *storage.FileStore
	Tasks      *tasks.Store
	Skills     *skills.Registry
	Dispatcher *tools.Dispatcher
	Model      model.ToolCallingChatModel
	Traces     *trace.Store // nil disables trace persistence
	Bus        *events.Bus  // nil disables live events
}

// Options tune the orchestrator.
type Options struct {
	// MaxIterations bounds the model calls of one run (0 = unbounded).
	MaxIterations      int
	RecentTasks        int
	DefaultTimezone    string
	CustomInstructions string
	Persona            string
	// CallTimeout is the deadline of a single model call (0 = none).
	CallTimeout time.Duration
	Now         func() time.Time
}

// Orchestrator runs conversations.
type Orchestrator struct {
	deps     Deps
	opts     Options
	composer *PromptComposer
}

// NewOrchestrator validates deps and fills option defaults.
func NewOrchestrator(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Files == nil, deps.Tasks == nil, deps.Skills == nil, deps.Dispatcher == nil:
		return nil, fmt.Errorf("agent: files, tasks, skills and dispatcher are required")
	case deps.Model == nil:
		return nil, fmt.Errorf("agent: a chat model is required")
	}
	if opts.RecentTasks <= 0 {
		opts.RecentTasks = 5
	}
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = "America/Chicago"
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{deps: deps, opts: opts, composer: NewPromptComposer(opts.Persona)}, nil
}

// run is the mutable state of one Run.
type run struct {
	tracer     *trace.Tracer
	channel    string
	context    map[string]any
	actions    []tools.Action
	skillsUsed []string
	iterations int
	limitHit   bool
}

// Run handles one inbound message. Tool failures are reported to the model
// and never abort the run. A failure to build context or to reach the model
// ends the run: the returned Response has Success false and the error is
// returned alongside it.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Response, error) {
	r := &run{
		tracer:  trace.New(trace.WithClock(o.opts.Now), trace.WithSink(o.publishEntry)),
		channel: NormalizeChannel(req.Channel),
		context: req.Context,
	}
	ctx = events.ContextWithTraceID(ctx, r.tracer.ID())
	ctx = tools.ContextWithChannel(ctx, r.channel)

	received := map[string]any{
		"channel": r.channel,
		"length":  len(req.Message),
	}
	if len(req.Context) > 0 {
		received["context"] = req.Context
	}
	r.tracer.Info(trace.EventRequestReceived, "request received", received)
	o.publish(events.RunStartedPayload{Channel: r.channel, Message: req.Message}, r.tracer.ID())

	message, err := o.converse(ctx, r, req)
	if err != nil {
		r.tracer.Error(trace.EventError, err.Error(), nil)
		return o.finish(ctx, r, "", err), err
	}
	r.tracer.Info(trace.EventResponseGenerated, "response generated", map[string]any{
		"length":  len(message),
		"actions": len(r.actions),
	})
	return o.finish(ctx, r, message, nil), nil
}

// converse walks BuildingContext, then AwaitingLLM and ExecutingTools until
// the model stops requesting tools.
func (o *Orchestrator) converse(ctx context.Context, r *run, req Request) (string, error) {
	system, err := o.buildContext(ctx, r)
	if err != nil {
		return "", err
	}

	chat, err := o.deps.Model.WithTools(o.deps.Dispatcher.ToolInfos())
	if err != nil {
		return "", fmt.Errorf("bind tools: %w", err)
	}

	history := []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(req.Message),
	}
	var lastText string

	for {
		if o.opts.MaxIterations > 0 && r.iterations >= o.opts.MaxIterations {
			r.limitHit = true
			r.tracer.Warn(trace.EventIterationLimit, "iteration limit reached", map[string]any{
				"max_iterations": o.opts.MaxIterations,
			})
			if lastText != "" {
				return lastText, nil
			}
			return PartialReply, nil
		}
		r.iterations++

		resp, err := o.generate(ctx, r, chat, history)
		if err != nil {
			return "", err
		}
		if resp.Content != "" {
			lastText = resp.Content
		}

		if !requestsTools(resp) {
			if resp.Content == "" {
				return DefaultReply, nil
			}
			return resp.Content, nil
		}

		history = append(history, resp)
		for _, call := range resp.ToolCalls {
			history = append(history, o.executeTool(ctx, r, call))
		}
		r.tracer.Debug(trace.EventIterationComplete, "iteration complete", map[string]any{
			"iteration":  r.iterations,
			"tool_calls": len(resp.ToolCalls),
		})
	}
}

func (o *Orchestrator) buildContext(ctx context.Context, r *run) (string, error) {
	now := o.opts.Now()
	created, err := EnsureWorkspace(ctx, o.deps.Files, o.opts.DefaultTimezone, now)
	if err != nil {
		return "", err
	}
	r.tracer.Info(trace.EventWorkspaceCheck, "workspace ready", map[string]any{"initialized": created})

	recent, err := o.deps.Tasks.Recent(ctx, o.opts.RecentTasks)
	if err != nil {
		return "", fmt.Errorf("load recent tasks: %w", err)
	}
	timezone := o.opts.DefaultTimezone
	if wc, err := LoadWorkspaceConfig(ctx, o.deps.Files); err != nil {
		slog.Debug("workspace config unreadable, using default timezone", "error", err)
	} else if wc.Timezone != "" {
		timezone = wc.Timezone
	}
	r.tracer.Info(trace.EventContextBuilt, "context built", map[string]any{
		"recent_tasks": len(recent),
		"timezone":     timezone,
	})

	catalog, err := o.deps.Skills.List(ctx)
	if err != nil {
		return "", fmt.Errorf("load skills: %w", err)
	}
	names := make([]string, len(catalog))
	for i, s := range catalog {
		names[i] = s.Name
	}
	r.tracer.Info(trace.EventSkillsLoaded, "skills loaded", map[string]any{
		"count":  len(catalog),
		"skills": names,
	})

	prompt := o.composer.Compose(PromptContext{
		Channel:            r.channel,
		Request:            r.context,
		Now:                now,
		Timezone:           timezone,
		RecentTasks:        recent,
		Skills:             catalog,
		Tools:              o.deps.Dispatcher.Specs(),
		CustomInstructions: o.opts.CustomInstructions,
	})
	r.tracer.Debug(trace.EventSystemPromptBuilt, "system prompt built", map[string]any{"length": len(prompt)})
	return prompt, nil
}

// generate issues one model call under the per-call deadline.
func (o *Orchestrator) generate(ctx context.Context, r *run, chat model.ToolCallingChatModel, history []*schema.Message) (*schema.Message, error) {
	r.tracer.Info(trace.EventLLMRequestStart, "llm request", map[string]any{
		"iteration": r.iterations,
		"messages":  len(history),
	})

	callCtx := ctx
	if o.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.opts.CallTimeout)
		defer cancel()
	}
	resp, err := chat.Generate(callCtx, history)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, models.HandleError(err))
	}
	if resp == nil {
		return nil, fmt.Errorf("%w: model returned no message", ErrUpstream)
	}

	var prompt, completion int
	finish := ""
	if meta := resp.ResponseMeta; meta != nil {
		finish = meta.FinishReason
		if meta.Usage != nil {
			prompt, completion = meta.Usage.PromptTokens, meta.Usage.CompletionTokens
		}
	}
	r.tracer.RecordTokens(trace.LevelInfo, trace.EventLLMRequestComplete, "llm response", prompt+completion, map[string]any{
		"finish_reason":     finish,
		"tool_calls":        len(resp.ToolCalls),
		"prompt_tokens":     prompt,
		"completion_tokens": completion,
	})
	return resp, nil
}

// requestsTools reports whether the model asked for tool calls. Some
// providers finish with "stop" alongside tool calls, and a "tool_calls"
// finish with no calls has nothing to execute, so only the calls count.
func requestsTools(resp *schema.Message) bool {
	return len(resp.ToolCalls) > 0
}

// skillName peeks at execute_skill arguments for tracing.
func skillName(args string) string {
	var in struct {
		SkillName string `json:"skill_name"`
	}
	if err := json.Unmarshal([]byte(args), &in); err != nil {
		return ""
	}
	return in.SkillName
}

// executeTool dispatches one call and returns the tool message for the
// history. Failures become an error-tagged result.
func (o *Orchestrator) executeTool(ctx context.Context, r *run, call schema.ToolCall) *schema.Message {
	name := call.Function.Name
	data := map[string]any{"tool": name, "call_id": call.ID}
	r.tracer.Info(trace.EventToolCallStart, "tool call: "+name, data)

	skill := ""
	if name == string(tools.ExecuteSkill) {
		skill = skillName(call.Function.Arguments)
		r.tracer.Info(trace.EventSkillExecutionStart, "skill: "+skill, map[string]any{"skill": skill})
	}

	res, err := o.deps.Dispatcher.Execute(ctx, name, call.Function.Arguments)
	var content string
	if err == nil {
		content, err = res.JSON()
	}
	if err != nil {
		r.tracer.Warn(trace.EventToolCallError, err.Error(), map[string]any{
			"tool":     name,
			"call_id":  call.ID,
			"timeout":  errors.Is(err, storage.ErrTimeout),
			"conflict": errors.Is(err, storage.ErrConflict),
		})
		return schema.ToolMessage(formatToolError(name, err), call.ID)
	}

	if content == "" {
		content = emptyToolResult
	}
	if a := res.Action; a != nil {
		r.actions = append(r.actions, *a)
		if a.Type == tools.ActionSkillExecuted && a.Skill != "" && !slices.Contains(r.skillsUsed, a.Skill) {
			r.skillsUsed = append(r.skillsUsed, a.Skill)
		}
		o.publish(events.ActionPayload{
			Type:   string(a.Type),
			TaskID: a.TaskID,
			Title:  a.Title,
			Path:   a.Path,
			Skill:  a.Skill,
		}, r.tracer.ID())
	}
	r.tracer.Info(trace.EventToolCallComplete, "tool result: "+name, map[string]any{
		"tool":    name,
		"call_id": call.ID,
		"action":  res.Action != nil,
	})
	if skill != "" {
		r.tracer.Info(trace.EventSkillExecutionComplete, "skill loaded: "+skill, map[string]any{
			"skill":   skill,
			"success": res.Action != nil,
		})
	}
	return schema.ToolMessage(content, call.ID)
}

// finish persists the trace and assembles the response.
func (o *Orchestrator) finish(ctx context.Context, r *run, message string, runErr error) *Response {
	if o.deps.Traces != nil {
		if err := o.deps.Traces.Save(ctx, r.tracer.Document()); err != nil {
			r.tracer.Error(trace.EventError, "trace not saved: "+err.Error(), nil)
		}
	}

	doc := r.tracer.Document()
	summary := doc.Summary
	skillsUsed := r.skillsUsed
	if skillsUsed == nil {
		skillsUsed = []string{}
	}
	actions := r.actions
	if actions == nil {
		actions = []tools.Action{}
	}
	resp := &Response{
		Success: summary.Success && runErr == nil,
		Message: message,
		Actions: actions,
		Metadata: Metadata{
			Channel:           r.channel,
			TokensUsed:        summary.TokensUsed,
			DurationMs:        summary.TotalDurationMs,
			Iterations:        r.iterations,
			SkillsExecuted:    skillsUsed,
			IterationLimitHit: r.limitHit,
		},
		TraceID: doc.TraceID,
		Trace:   &doc,
	}
	if runErr != nil {
		resp.Error = runErr.Error()
	}

	completed := events.RunCompletedPayload{
		Success:    resp.Success,
		Message:    message,
		Actions:    len(actions),
		TokensUsed: summary.TokensUsed,
		Duration:   time.Duration(summary.TotalDurationMs) * time.Millisecond,
		Error:      resp.Error,
	}
	o.publish(completed, doc.TraceID)
	return resp
}

func (o *Orchestrator) publishEntry(traceID string, e trace.Entry) {
	o.publish(events.TraceEntryPayload{
		Level:      string(e.Level),
		Event:      string(e.Event),
		Message:    e.Message,
		DurationMs: e.DurationMs,
		Data:       e.Data,
	}, traceID)
}

func (o *Orchestrator) publish(payload events.EventPayload, traceID string) {
	if o.deps.Bus == nil {
		return
	}
	source := events.SourceAgent
	if payload.EventType() == events.EventTraceEntry {
		source = events.SourceTracer
	}
	o.deps.Bus.Publish(events.NewTypedEvent(source, payload, traceID))
}
