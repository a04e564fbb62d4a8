package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/claybowl/taygency/internal/tasks"
)

// subtaskList accepts checklist items either as plain strings or as
// {"title": ..., "done": ...} objects.
type subtaskList []tasks.Subtask

func (l *subtaskList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(subtaskList, 0, len(raw))
	for _, item := range raw {
		var title string
		if err := json.Unmarshal(item, &title); err == nil {
			out = append(out, tasks.Subtask{Title: title})
			continue
		}
		var st tasks.Subtask
		if err := json.Unmarshal(item, &st); err != nil {
			return fmt.Errorf("subtask must be a string or {title, done}: %w", err)
		}
		out = append(out, st)
	}
	*l = out
	return nil
}

// clean drops blank items.
func (l subtaskList) clean() []tasks.Subtask {
	var out []tasks.Subtask
	for _, st := range l {
		st.Title = strings.TrimSpace(st.Title)
		if st.Title != "" {
			out = append(out, st)
		}
	}
	return out
}

type createTaskInput struct {
	Title    string      `json:"title"`
	Priority string      `json:"priority"`
	Category string      `json:"category"`
	Energy   string      `json:"energy"`
	Duration string      `json:"duration"`
	Context  []string    `json:"context"`
	Due      string      `json:"due"`
	Project  string      `json:"project"`
	Notes    string      `json:"notes"`
	Subtasks subtaskList `json:"subtasks"`
}

func (in createTaskInput) toCreate() (tasks.CreateInput, error) {
	due, err := parseDue(in.Due)
	if err != nil {
		return tasks.CreateInput{}, err
	}
	return tasks.CreateInput{
		Title:    in.Title,
		Priority: tasks.Priority(strings.ToLower(strings.TrimSpace(in.Priority))),
		Category: in.Category,
		Energy:   in.Energy,
		Duration: in.Duration,
		Context:  in.Context,
		Due:      due,
		Project:  in.Project,
		Notes:    in.Notes,
		Subtasks: in.Subtasks.clean(),
	}, nil
}

type listTasksInput struct {
	Status   string `json:"status"`
	Category string `json:"category"`
	Limit    int    `json:"limit"`
}

type taskIDInput struct {
	TaskID string `json:"task_id"`
}

type updateTaskInput struct {
	TaskID   string       `json:"task_id"`
	Title    *string      `json:"title"`
	Status   *string      `json:"status"`
	Priority *string      `json:"priority"`
	Category *string      `json:"category"`
	Energy   *string      `json:"energy"`
	Duration *string      `json:"duration"`
	Context  *[]string    `json:"context"`
	Due      *string      `json:"due"`
	Project  *string      `json:"project"`
	Notes    *string      `json:"notes"`
	Subtasks *subtaskList `json:"subtasks"`
}

func (in updateTaskInput) toPatch() (tasks.Patch, error) {
	patch := tasks.Patch{
		Title:    in.Title,
		Category: in.Category,
		Energy:   in.Energy,
		Duration: in.Duration,
		Context:  in.Context,
		Project:  in.Project,
		Notes:    in.Notes,
	}
	if in.Status != nil {
		status := tasks.Status(strings.ToLower(strings.TrimSpace(*in.Status)))
		patch.Status = &status
	}
	if in.Priority != nil {
		priority := tasks.Priority(strings.ToLower(strings.TrimSpace(*in.Priority)))
		patch.Priority = &priority
	}
	if in.Due != nil {
		due, err := parseDue(*in.Due)
		if err != nil {
			return tasks.Patch{}, err
		}
		patch.Due = due
	}
	if in.Subtasks != nil {
		subtasks := in.Subtasks.clean()
		patch.Subtasks = &subtasks
	}
	return patch, nil
}

type readFileInput struct {
	Path string `json:"path"`
}

type writeFileInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Message string `json:"message"`
}

type searchFilesInput struct {
	Query string `json:"query"`
	Path  string `json:"path"`
	Glob  string `json:"glob"`
}

type executeSkillInput struct {
	SkillName string         `json:"skill_name"`
	Params    map[string]any `json:"params"`
}

type planOverdueInput struct {
	Category string `json:"category"`
}

type planRescheduleInput struct {
	TaskID string `json:"task_id"`
	Due    string `json:"due"`
}

// parseDue returns nil for a blank value.
func parseDue(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := tasks.ParseTime(s)
	if err != nil {
		return nil, fmt.Errorf("due: %w", err)
	}
	return &t, nil
}

// decode parses tool arguments. Empty arguments decode as {}.
func decode(name Name, args string, v any) error {
	if strings.TrimSpace(args) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(args), v); err != nil {
		return fmt.Errorf("%s: parse input: %w", name, err)
	}
	return nil
}
