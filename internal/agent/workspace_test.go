package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/claybowl/taygency/internal/skills"
	"github.com/claybowl/taygency/internal/storage"
	"github.com/claybowl/taygency/internal/storage/dirstore"
)

func TestEnsureWorkspace(t *testing.T) {
	ctx := context.Background()
	files := storage.NewFileStore(dirstore.New(t.TempDir()), storage.Options{})
	now := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	created, err := EnsureWorkspace(ctx, files, "Europe/Paris", now)
	if err != nil {
		t.Fatalf("EnsureWorkspace: %v", err)
	}
	if !created {
		t.Fatal("expected a fresh workspace")
	}

	for _, p := range []string{
		MarkerPath,
		"inbox/.gitkeep",
		"tasks/active/.gitkeep",
		"tasks/completed/.gitkeep",
		"tasks/someday/.gitkeep",
		"context/.gitkeep",
		"conversations/traces/.gitkeep",
		"skills/task-capture.md",
		"skills/weekly-review.md",
		"skills/_meta/skill-authoring.md",
	} {
		if !files.Exists(ctx, p) {
			t.Errorf("missing %s", p)
		}
	}

	cfg, err := LoadWorkspaceConfig(ctx, files)
	if err != nil {
		t.Fatalf("LoadWorkspaceConfig: %v", err)
	}
	if cfg.Timezone != "Europe/Paris" || cfg.Version != WorkspaceVersion || !cfg.CreatedAt.Equal(now) {
		t.Errorf("unexpected config %+v", cfg)
	}

	list, err := skills.NewRegistry(files).List(ctx)
	if err != nil {
		t.Fatalf("List skills: %v", err)
	}
	var names []string
	for _, s := range list {
		names = append(names, s.Name)
	}
	if got := strings.Join(names, ","); !strings.Contains(got, "task-capture") || !strings.Contains(got, "weekly-review") {
		t.Errorf("default skills not listed: %s", got)
	}
	if !strings.Contains(strings.Join(names, ","), skills.MetaPrefix+"skill-authoring") {
		t.Error("meta skill not listed under its prefix")
	}
}

func TestEnsureWorkspace_Idempotent(t *testing.T) {
	ctx := context.Background()
	files := storage.NewFileStore(dirstore.New(t.TempDir()), storage.Options{})
	now := time.Now()

	if _, err := EnsureWorkspace(ctx, files, "UTC", now); err != nil {
		t.Fatalf("first EnsureWorkspace: %v", err)
	}
	if err := files.Write(ctx, "skills/task-capture.md", "customized", ""); err != nil {
		t.Fatalf("Write: %v", err)
	}

	created, err := EnsureWorkspace(ctx, files, "UTC", now)
	if err != nil {
		t.Fatalf("second EnsureWorkspace: %v", err)
	}
	if created {
		t.Error("expected existing workspace")
	}
	got, err := files.Read(ctx, "skills/task-capture.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "customized" {
		t.Errorf("user edit overwritten: %q", got)
	}
}

func TestEnsureWorkspace_CompletesPartialLayout(t *testing.T) {
	ctx := context.Background()
	files := storage.NewFileStore(dirstore.New(t.TempDir()), storage.Options{})
	if err := files.Write(ctx, "skills/weekly-review.md", "mine", ""); err != nil {
		t.Fatalf("Write: %v", err)
	}

	created, err := EnsureWorkspace(ctx, files, "UTC", time.Now())
	if err != nil {
		t.Fatalf("EnsureWorkspace: %v", err)
	}
	if !created {
		t.Error("expected initialization without a marker")
	}
	if got, _ := files.Read(ctx, "skills/weekly-review.md"); got != "mine" {
		t.Errorf("existing file overwritten: %q", got)
	}
	if !files.Exists(ctx, "skills/task-capture.md") {
		t.Error("missing default skill")
	}
}
