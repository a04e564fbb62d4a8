package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/claybowl/taygency/internal/skills"
	"github.com/claybowl/taygency/internal/storage"
	"github.com/claybowl/taygency/internal/tasks"
)

type channelKey struct{}

// ContextWithChannel records the inbound channel of the current run. Tasks
// created under this context carry it as their source.
func ContextWithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

// ChannelFromContext returns the channel set by ContextWithChannel.
func ChannelFromContext(ctx context.Context) string {
	ch, _ := ctx.Value(channelKey{}).(string)
	return ch
}

// Dispatcher executes catalog tools against the task store, the file store
// and the skill registry. Each call performs one store or registry operation.
type Dispatcher struct {
	tasks    *tasks.Store
	files    *storage.FileStore
	skills   *skills.Registry
	planning *skills.Planning
	specs    []ToolSpec
}

// NewDispatcher builds the catalog. The planning skill's sub-tools are
// appended after the canonical tools and must belong to the closed Name set.
func NewDispatcher(files *storage.FileStore, taskStore *tasks.Store, registry *skills.Registry, planning *skills.Planning) (*Dispatcher, error) {
	d := &Dispatcher{
		tasks:    taskStore,
		files:    files,
		skills:   registry,
		planning: planning,
		specs: []ToolSpec{
			createTaskSpec(),
			listTasksSpec(),
			completeTaskSpec(),
			updateTaskSpec(),
			readFileSpec(),
			writeFileSpec(),
			searchFilesSpec(),
			executeSkillSpec(),
		},
	}
	if planning != nil {
		for _, st := range planning.Skill().Tools {
			name, ok := ParseName(st.Name)
			if !ok {
				return nil, fmt.Errorf("skill %s: %w: %s", planning.Skill().Name, ErrUnknownTool, st.Name)
			}
			d.specs = append(d.specs, subToolSpec(name, st))
		}
	}
	return d, nil
}

// Specs returns the catalog in presentation order.
func (d *Dispatcher) Specs() []ToolSpec {
	return append([]ToolSpec(nil), d.specs...)
}

// Definitions returns the JSON schema form of the catalog.
func (d *Dispatcher) Definitions() []Definition {
	defs := make([]Definition, len(d.specs))
	for i, s := range d.specs {
		defs[i] = s.Definition()
	}
	return defs
}

// ToolInfos returns the catalog for binding to a chat model.
func (d *Dispatcher) ToolInfos() []*schema.ToolInfo {
	infos := make([]*schema.ToolInfo, len(d.specs))
	for i := range d.specs {
		infos[i] = toolSpecToToolInfo(&d.specs[i])
	}
	return infos
}

func (d *Dispatcher) spec(name Name) (ToolSpec, bool) {
	for _, s := range d.specs {
		if s.Name == name {
			return s, true
		}
	}
	return ToolSpec{}, false
}

// Execute runs the tool called name with JSON arguments. Errors are returned
// to the caller, which decides how to report them to the model.
func (d *Dispatcher) Execute(ctx context.Context, name string, args string) (Result, error) {
	n, ok := ParseName(name)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if _, ok := d.spec(n); !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return d.dispatch(ctx, n, args)
}

func (d *Dispatcher) dispatch(ctx context.Context, name Name, args string) (Result, error) {
	switch name {
	case CreateTask:
		return d.createTask(ctx, args)
	case ListTasks:
		return d.listTasks(ctx, args)
	case CompleteTask:
		return d.completeTask(ctx, args)
	case UpdateTask:
		return d.updateTask(ctx, args)
	case ReadFile:
		return d.readFile(ctx, args)
	case WriteFile:
		return d.writeFile(ctx, args)
	case SearchFiles:
		return d.searchFiles(ctx, args)
	case ExecuteSkill:
		return d.executeSkill(ctx, args)
	case PlanOverdueTasks:
		return d.planOverdue(ctx, args)
	case PlanRescheduleTask:
		return d.planReschedule(ctx, args)
	}
	return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

type taskOutput struct {
	Success bool        `json:"success"`
	Task    *tasks.Task `json:"task,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type taskListOutput struct {
	Tasks []*tasks.Task `json:"tasks"`
	Count int           `json:"count"`
}

func taskNotFound(id string) Result {
	return Result{Output: taskOutput{Success: false, Error: "Task not found: " + id}}
}

func (d *Dispatcher) createTask(ctx context.Context, args string) (Result, error) {
	var input createTaskInput
	if err := decode(CreateTask, args, &input); err != nil {
		return Result{}, err
	}
	in, err := input.toCreate()
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", CreateTask, err)
	}
	t, err := d.tasks.Create(ctx, in, ChannelFromContext(ctx))
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", CreateTask, err)
	}
	return Result{
		Output: taskOutput{Success: true, Task: t},
		Action: &Action{Type: ActionTaskCreated, TaskID: t.ID, Title: t.Title},
	}, nil
}

func (d *Dispatcher) listTasks(ctx context.Context, args string) (Result, error) {
	var input listTasksInput
	if err := decode(ListTasks, args, &input); err != nil {
		return Result{}, err
	}
	filter := tasks.ListFilter{
		Status:   tasks.Status(strings.ToLower(strings.TrimSpace(input.Status))),
		Category: strings.TrimSpace(input.Category),
	}
	list, err := d.tasks.List(ctx, filter)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", ListTasks, err)
	}
	if input.Limit > 0 && len(list) > input.Limit {
		list = list[:input.Limit]
	}
	if list == nil {
		list = []*tasks.Task{}
	}
	return Result{Output: taskListOutput{Tasks: list, Count: len(list)}}, nil
}

func (d *Dispatcher) completeTask(ctx context.Context, args string) (Result, error) {
	var input taskIDInput
	if err := decode(CompleteTask, args, &input); err != nil {
		return Result{}, err
	}
	if input.TaskID == "" {
		return Result{}, fmt.Errorf("%s: task_id is required", CompleteTask)
	}
	t, err := d.tasks.Complete(ctx, input.TaskID)
	if errors.Is(err, tasks.ErrNotFound) {
		return taskNotFound(input.TaskID), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", CompleteTask, err)
	}
	return Result{
		Output: taskOutput{Success: true, Task: t},
		Action: &Action{Type: ActionTaskCompleted, TaskID: t.ID, Title: t.Title},
	}, nil
}

func (d *Dispatcher) updateTask(ctx context.Context, args string) (Result, error) {
	var input updateTaskInput
	if err := decode(UpdateTask, args, &input); err != nil {
		return Result{}, err
	}
	if input.TaskID == "" {
		return Result{}, fmt.Errorf("%s: task_id is required", UpdateTask)
	}
	patch, err := input.toPatch()
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", UpdateTask, err)
	}
	t, err := d.tasks.Update(ctx, input.TaskID, patch)
	if errors.Is(err, tasks.ErrNotFound) {
		return taskNotFound(input.TaskID), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", UpdateTask, err)
	}
	return Result{
		Output: taskOutput{Success: true, Task: t},
		Action: &Action{Type: ActionTaskUpdated, TaskID: t.ID, Title: t.Title},
	}, nil
}

type readFileOutput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (d *Dispatcher) readFile(ctx context.Context, args string) (Result, error) {
	var input readFileInput
	if err := decode(ReadFile, args, &input); err != nil {
		return Result{}, err
	}
	p, err := workspacePath(ReadFile, input.Path)
	if err != nil {
		return Result{}, err
	}
	content, err := d.files.Read(ctx, p)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", ReadFile, err)
	}
	return Result{Output: readFileOutput{Path: p, Content: content}}, nil
}

type writeFileOutput struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

func (d *Dispatcher) writeFile(ctx context.Context, args string) (Result, error) {
	var input writeFileInput
	if err := decode(WriteFile, args, &input); err != nil {
		return Result{}, err
	}
	p, err := workspacePath(WriteFile, input.Path)
	if err != nil {
		return Result{}, err
	}
	message := input.Message
	if message == "" {
		message = "Update " + p
	}
	if err := d.files.Write(ctx, p, input.Content, message); err != nil {
		return Result{}, fmt.Errorf("%s: %w", WriteFile, err)
	}
	return Result{
		Output: writeFileOutput{Success: true, Path: p},
		Action: &Action{Type: ActionFileWritten, Path: p},
	}, nil
}

type searchFilesOutput struct {
	Results []storage.SearchResult `json:"results"`
	Count   int                    `json:"count"`
}

func (d *Dispatcher) searchFiles(ctx context.Context, args string) (Result, error) {
	var input searchFilesInput
	if err := decode(SearchFiles, args, &input); err != nil {
		return Result{}, err
	}
	results, err := d.files.SearchText(ctx, input.Query, storage.SearchOptions{Dir: input.Path, Glob: input.Glob})
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", SearchFiles, err)
	}
	if results == nil {
		results = []storage.SearchResult{}
	}
	return Result{Output: searchFilesOutput{Results: results, Count: len(results)}}, nil
}

func (d *Dispatcher) executeSkill(ctx context.Context, args string) (Result, error) {
	var input executeSkillInput
	if err := decode(ExecuteSkill, args, &input); err != nil {
		return Result{}, err
	}
	name := strings.TrimSpace(input.SkillName)
	if name == "" {
		return Result{}, fmt.Errorf("%s: skill_name is required", ExecuteSkill)
	}
	res, err := d.skills.Execute(ctx, name, input.Params)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", ExecuteSkill, err)
	}
	out := Result{Output: res}
	if res.Success {
		out.Action = &Action{Type: ActionSkillExecuted, Skill: name}
	}
	return out, nil
}

func (d *Dispatcher) planOverdue(ctx context.Context, args string) (Result, error) {
	var input planOverdueInput
	if err := decode(PlanOverdueTasks, args, &input); err != nil {
		return Result{}, err
	}
	list, err := d.planning.Overdue(ctx, input.Category)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", PlanOverdueTasks, err)
	}
	if list == nil {
		list = []*tasks.Task{}
	}
	return Result{
		Output: taskListOutput{Tasks: list, Count: len(list)},
		Action: &Action{Type: ActionSkillExecuted, Skill: skills.PlanningSkillName},
	}, nil
}

func (d *Dispatcher) planReschedule(ctx context.Context, args string) (Result, error) {
	var input planRescheduleInput
	if err := decode(PlanRescheduleTask, args, &input); err != nil {
		return Result{}, err
	}
	if input.TaskID == "" {
		return Result{}, fmt.Errorf("%s: task_id is required", PlanRescheduleTask)
	}
	due, err := parseDue(input.Due)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", PlanRescheduleTask, err)
	}
	if due == nil {
		return Result{}, fmt.Errorf("%s: due is required", PlanRescheduleTask)
	}
	t, err := d.planning.Reschedule(ctx, input.TaskID, *due)
	if errors.Is(err, tasks.ErrNotFound) {
		return taskNotFound(input.TaskID), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", PlanRescheduleTask, err)
	}
	return Result{
		Output: taskOutput{Success: true, Task: t},
		Action: &Action{Type: ActionSkillExecuted, TaskID: t.ID, Title: t.Title, Skill: skills.PlanningSkillName},
	}, nil
}

// workspacePath confines a tool-supplied path to the workspace.
func workspacePath(name Name, p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", fmt.Errorf("%s: path is required", name)
	}
	clean, err := storage.CleanPath(p)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if clean == "" {
		return "", fmt.Errorf("%s: %w: %q is the workspace root", name, storage.ErrInvalidPath, p)
	}
	return clean, nil
}

// JSON renders the output as the tool result text fed back to the model.
func (r Result) JSON() (string, error) {
	data, err := json.Marshal(r.Output)
	if err != nil {
		return "", fmt.Errorf("tools: marshal result: %w", err)
	}
	return string(data), nil
}
