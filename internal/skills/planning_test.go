package skills

import (
	"context"
	"testing"
	"time"

	"github.com/claybowl/taygency/internal/storage"
	"github.com/claybowl/taygency/internal/storage/dirstore"
	"github.com/claybowl/taygency/internal/tasks"
)

func TestPlanning(t *testing.T) {
	ctx := context.Background()
	files := storage.NewFileStore(dirstore.New(t.TempDir()), storage.Options{})
	store := tasks.NewStore(files)
	p, err := NewPlanning(store)
	if err != nil {
		t.Fatalf("NewPlanning: %v", err)
	}
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	mk := func(title, category string, due *time.Time) *tasks.Task {
		task, err := store.Create(ctx, tasks.CreateInput{Title: title, Category: category, Due: due}, "")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		return task
	}
	day := func(d int) *time.Time { v := now.AddDate(0, 0, d); return &v }

	older := mk("older", "work", day(-5))
	recent := mk("recent", "work", day(-1))
	mk("future", "work", day(3))
	mk("undated", "work", nil)
	mk("home chore", "home", day(-2))

	overdue, err := p.Overdue(ctx, "work")
	if err != nil {
		t.Fatalf("Overdue: %v", err)
	}
	if len(overdue) != 2 || overdue[0].ID != older.ID || overdue[1].ID != recent.ID {
		t.Fatalf("Overdue: got %+v", overdue)
	}

	all, _ := p.Overdue(ctx, "")
	if len(all) != 3 {
		t.Errorf("Overdue any category: got %d", len(all))
	}

	moved, err := p.Reschedule(ctx, older.ID, *day(7))
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	if !moved.Due.Equal(*day(7)) {
		t.Errorf("Due: got %v", moved.Due)
	}
	overdue, _ = p.Overdue(ctx, "work")
	if len(overdue) != 1 || overdue[0].ID != recent.ID {
		t.Errorf("Overdue after reschedule: got %+v", overdue)
	}

	if _, err := p.Reschedule(ctx, "task_missing", now); err == nil {
		t.Error("expected error for missing task")
	}
}
