// Package tasks holds the task entity, its markdown document format and the
// file-backed Store that keeps one document per task under its status directory.
package tasks

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no stored document carries an id.
	ErrNotFound = errors.New("tasks: not found")
	// ErrMalformedDocument is returned when a task document cannot be parsed.
	ErrMalformedDocument = errors.New("tasks: malformed document")
	// ErrDuplicateTask is returned when an id is stored under several status
	// directories and no copy can be chosen by the repair rule.
	ErrDuplicateTask = fmt.Errorf("%w: duplicate task", ErrMalformedDocument)
)

// Status is the lifecycle state of a task. It determines the directory the
// task document lives in.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusSomeday   Status = "someday"
)

// Statuses lists every status in probe order.
var Statuses = []Status{StatusActive, StatusCompleted, StatusSomeday}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusCompleted, StatusSomeday:
		return true
	}
	return false
}

// Priority orders tasks within a listing.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	return p.rank() >= 0
}

func (p Priority) rank() int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	}
	return -1
}

// DefaultCategory is assigned to tasks created without a category.
const DefaultCategory = "inbox"

// Subtask is one checklist line of a task.
type Subtask struct {
	Title string `json:"title"`
	Done  bool   `json:"done"`
}

// Task is a unit of work.
type Task struct {
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Status   Status     `json:"status"`
	Priority Priority   `json:"priority"`
	Category string     `json:"category"`
	Energy   string     `json:"energy,omitempty"`
	Duration string     `json:"duration,omitempty"`
	Context  []string   `json:"context,omitempty"`
	Due      *time.Time `json:"due,omitempty"`
	Project  string     `json:"project,omitempty"`
	Source   string     `json:"source,omitempty"`
	Notes    string     `json:"notes,omitempty"`
	Subtasks []Subtask  `json:"subtasks,omitempty"`
	Created  time.Time  `json:"created"`
	Updated  time.Time  `json:"updated"`
}

// CreateInput carries the caller-supplied fields of a new task.
type CreateInput struct {
	Title    string
	Priority Priority
	Category string
	Energy   string
	Duration string
	Context  []string
	Due      *time.Time
	Project  string
	Notes    string
	Subtasks []Subtask
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title    *string
	Status   *Status
	Priority *Priority
	Category *string
	Energy   *string
	Duration *string
	Context  *[]string
	Due      *time.Time
	Project  *string
	Notes    *string
	Subtasks *[]Subtask
}

// apply mutates t with every set field of p.
func (p Patch) apply(t *Task) error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return fmt.Errorf("title must not be empty")
		}
		t.Title = title
	}
	if p.Status != nil {
		if !p.Status.Valid() {
			return fmt.Errorf("invalid status %q", *p.Status)
		}
		t.Status = *p.Status
	}
	if p.Priority != nil {
		if !p.Priority.Valid() {
			return fmt.Errorf("invalid priority %q", *p.Priority)
		}
		t.Priority = *p.Priority
	}
	setString(&t.Category, p.Category)
	setString(&t.Energy, p.Energy)
	setString(&t.Duration, p.Duration)
	setString(&t.Project, p.Project)
	if p.Notes != nil {
		t.Notes = strings.TrimSpace(*p.Notes)
	}
	if p.Context != nil {
		t.Context = append([]string(nil), (*p.Context)...)
	}
	if p.Due != nil {
		due := *p.Due
		t.Due = &due
	}
	if p.Subtasks != nil {
		t.Subtasks = append([]Subtask(nil), (*p.Subtasks)...)
	}
	if t.Category == "" {
		t.Category = DefaultCategory
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}

// NewID derives a task identifier from the creation instant and a random suffix.
func NewID(now time.Time) string {
	u := uuid.New()
	return fmt.Sprintf("task_%s_%x", strconv.FormatInt(now.UnixMilli(), 36), u[:3])
}

// ParseTime accepts RFC 3339 timestamps and bare YYYY-MM-DD dates.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: want RFC 3339 or YYYY-MM-DD", s)
}
