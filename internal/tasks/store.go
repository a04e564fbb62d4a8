package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/claybowl/taygency/internal/storage"
)

// Dir is the workspace directory holding one subdirectory per status.
const Dir = "tasks"

// ListFilter narrows a listing. Zero fields match everything.
type ListFilter struct {
	Status   Status
	Category string
}

// Store persists tasks as markdown documents at tasks/<status>/<id>.md.
type Store struct {
	files *storage.FileStore
	now   func() time.Time
}

// NewStore creates a Store over the shared file store.
func NewStore(files *storage.FileStore) *Store {
	return &Store{files: files, now: time.Now}
}

// PathFor returns the document path of id under status.
func PathFor(status Status, id string) string {
	return path.Join(Dir, string(status), id+".md")
}

// Create stores a new active task. source is the originating channel, if any.
func (s *Store) Create(ctx context.Context, in CreateInput, source string) (*Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("create task: title is required")
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return nil, fmt.Errorf("create task: invalid priority %q", priority)
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = DefaultCategory
	}

	now := s.now()
	t := &Task{
		ID:       NewID(now),
		Title:    title,
		Status:   StatusActive,
		Priority: priority,
		Category: category,
		Energy:   strings.TrimSpace(in.Energy),
		Duration: strings.TrimSpace(in.Duration),
		Context:  append([]string(nil), in.Context...),
		Due:      in.Due,
		Project:  strings.TrimSpace(in.Project),
		Source:   source,
		Notes:    strings.TrimSpace(in.Notes),
		Subtasks: append([]Subtask(nil), in.Subtasks...),
		Created:  now,
		Updated:  now,
	}
	if err := s.save(ctx, t, "Create task: "+t.Title); err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return t, nil
}

// stored is one copy of a task found on disk.
type stored struct {
	task *Task
	dir  Status
}

// Get returns the task with id. It probes active, completed, then someday.
// An absent or unparsable task yields ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Task, error) {
	found, err := s.locate(ctx, id)
	if err != nil {
		return nil, err
	}
	return found.task, nil
}

func (s *Store) locate(ctx context.Context, id string) (stored, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return stored{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	var copies []stored
	for _, status := range Statuses {
		t, err := s.load(ctx, PathFor(status, id))
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, ErrMalformedDocument) {
				continue
			}
			return stored{}, fmt.Errorf("get task %s: %w", id, err)
		}
		copies = append(copies, stored{task: t, dir: status})
	}

	switch len(copies) {
	case 0:
		return stored{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return copies[0], nil
	}
	return s.repair(ctx, id, copies)
}

// repair resolves an id stored under several status directories, the
// leftover of an interrupted status change. Among the copies whose directory
// matches their own status, the most recently updated wins and the others are
// deleted.
func (s *Store) repair(ctx context.Context, id string, copies []stored) (stored, error) {
	var winner *stored
	tied := false
	for i := range copies {
		c := &copies[i]
		if c.task.Status != c.dir {
			continue
		}
		switch {
		case winner == nil || c.task.Updated.After(winner.task.Updated):
			winner, tied = c, false
		case c.task.Updated.Equal(winner.task.Updated):
			tied = true
		}
	}
	if winner == nil {
		return stored{}, fmt.Errorf("%w: %s has no copy matching its status", ErrDuplicateTask, id)
	}
	if tied {
		return stored{}, fmt.Errorf("%w: %s has several current copies", ErrDuplicateTask, id)
	}

	for _, c := range copies {
		if c.dir == winner.dir {
			continue
		}
		p := PathFor(c.dir, id)
		slog.Warn("removing duplicate task copy", "task_id", id, "kept", winner.dir, "removed", c.dir)
		if err := s.files.Delete(ctx, p, "Remove duplicate task copy: "+id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			slog.Warn("duplicate task copy not removed", "task_id", id, "path", p, "error", err)
		}
	}
	return *winner, nil
}

// Update applies a patch. A status change writes the task under its new
// directory, then deletes the old copy; if the delete fails both copies
// remain until the next Get repairs them.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (*Task, error) {
	found, err := s.locate(ctx, id)
	if err != nil {
		return nil, err
	}

	t := *found.task
	if err := patch.apply(&t); err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	t.Updated = s.now()

	if err := s.save(ctx, &t, "Update task: "+t.Title); err != nil {
		return nil, fmt.Errorf("update task %s: %w", id, err)
	}
	if t.Status != found.dir {
		if err := s.files.Delete(ctx, PathFor(found.dir, id), fmt.Sprintf("Move task %s to %s", id, t.Status)); err != nil {
			return nil, fmt.Errorf("update task %s: remove %s copy: %w", id, found.dir, err)
		}
	}
	return &t, nil
}

// Complete marks a task completed.
func (s *Store) Complete(ctx context.Context, id string) (*Task, error) {
	status := StatusCompleted
	return s.Update(ctx, id, Patch{Status: &status})
}

// List returns the tasks matching filter, high priority first. Ties keep the
// listing order: status directories in probe order, file names sorted.
// Unparsable documents are skipped.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Task, error) {
	statuses := Statuses
	if filter.Status != "" {
		if !filter.Status.Valid() {
			return nil, fmt.Errorf("list tasks: invalid status %q", filter.Status)
		}
		statuses = []Status{filter.Status}
	}

	byID := make(map[string][]stored)
	var order []string
	for _, status := range statuses {
		dir := path.Join(Dir, string(status))
		names, err := s.files.ListFiles(ctx, dir)
		if err != nil {
			return nil, fmt.Errorf("list tasks: %w", err)
		}
		for _, name := range names {
			if !strings.HasSuffix(name, ".md") {
				continue
			}
			t, err := s.load(ctx, path.Join(dir, name))
			if err != nil {
				if errors.Is(err, ErrMalformedDocument) || errors.Is(err, storage.ErrNotFound) {
					slog.Warn("skipping task document", "path", path.Join(dir, name), "error", err)
					continue
				}
				return nil, fmt.Errorf("list tasks: %w", err)
			}
			if _, seen := byID[t.ID]; !seen {
				order = append(order, t.ID)
			}
			byID[t.ID] = append(byID[t.ID], stored{task: t, dir: status})
		}
	}

	result := make([]*Task, 0, len(order))
	for _, id := range order {
		copies := byID[id]
		chosen := copies[0]
		if len(copies) > 1 {
			var err error
			if chosen, err = s.repair(ctx, id, copies); err != nil {
				slog.Warn("skipping duplicate task", "task_id", id, "error", err)
				continue
			}
		}
		if filter.Category != "" && !strings.EqualFold(chosen.task.Category, filter.Category) {
			continue
		}
		result = append(result, chosen.task)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Priority.rank() < result[j].Priority.rank()
	})
	return result, nil
}

// Recent returns up to n active tasks, most recently updated first.
func (s *Store) Recent(ctx context.Context, n int) ([]*Task, error) {
	active, err := s.List(ctx, ListFilter{Status: StatusActive})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Updated.After(active[j].Updated)
	})
	if n >= 0 && len(active) > n {
		active = active[:n]
	}
	return active, nil
}

func (s *Store) load(ctx context.Context, p string) (*Task, error) {
	content, err := s.files.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	return Unmarshal(content)
}

func (s *Store) save(ctx context.Context, t *Task, message string) error {
	doc, err := Marshal(t)
	if err != nil {
		return err
	}
	return s.files.Write(ctx, PathFor(t.Status, t.ID), doc, message)
}
