package agent

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/claybowl/taygency/internal/skills"
	"github.com/claybowl/taygency/internal/storage"
	"github.com/claybowl/taygency/internal/tasks"
	"github.com/claybowl/taygency/internal/trace"
)

// MarkerPath is the workspace config file. Its presence means the
// workspace has been initialized.
const MarkerPath = "meta/config.json"

// WorkspaceVersion is written into a fresh marker.
const WorkspaceVersion = "1.0.0"

var (
	//go:embed defaults/task-capture.md
	taskCaptureSkill string
	//go:embed defaults/weekly-review.md
	weeklyReviewSkill string
	//go:embed defaults/skill-authoring.md
	skillAuthoringSkill string
)

// defaultSkills maps the documents written into a fresh workspace.
var defaultSkills = []struct{ path, content string }{
	{skills.Dir + "/task-capture.md", taskCaptureSkill},
	{skills.Dir + "/weekly-review.md", weeklyReviewSkill},
	{skills.Dir + "/" + skills.MetaPrefix + "skill-authoring.md", skillAuthoringSkill},
}

// workspaceDirs get a .gitkeep so they exist in backends without empty directories.
var workspaceDirs = []string{
	"inbox",
	tasks.Dir + "/" + string(tasks.StatusActive),
	tasks.Dir + "/" + string(tasks.StatusCompleted),
	tasks.Dir + "/" + string(tasks.StatusSomeday),
	"context",
	trace.DefaultDir,
	skills.Dir + "/" + strings.TrimSuffix(skills.MetaPrefix, "/"),
}

// WorkspaceConfig is the content of the marker file.
type WorkspaceConfig struct {
	Version   string    `json:"version"`
	Timezone  string    `json:"timezone"`
	CreatedAt time.Time `json:"createdAt"`
}

// EnsureWorkspace lays out a fresh workspace unless the marker exists. It is
// idempotent: existing files are never overwritten, and the marker is written
// last so an interrupted run is completed by the next one.
func EnsureWorkspace(ctx context.Context, files *storage.FileStore, timezone string, now time.Time) (created bool, err error) {
	if files.Exists(ctx, MarkerPath) {
		return false, nil
	}

	for _, dir := range workspaceDirs {
		if err := writeIfMissing(ctx, files, dir+"/.gitkeep", "", "Initialize "+dir); err != nil {
			return false, err
		}
	}
	for _, s := range defaultSkills {
		if err := writeIfMissing(ctx, files, s.path, s.content, "Add default skill "+s.path); err != nil {
			return false, err
		}
	}

	marker, err := json.MarshalIndent(WorkspaceConfig{
		Version:   WorkspaceVersion,
		Timezone:  timezone,
		CreatedAt: now.UTC(),
	}, "", "  ")
	if err != nil {
		return false, fmt.Errorf("workspace: marshal config: %w", err)
	}
	if err := writeIfMissing(ctx, files, MarkerPath, string(marker)+"\n", "Initialize workspace"); err != nil {
		return false, err
	}
	return true, nil
}

func writeIfMissing(ctx context.Context, files *storage.FileStore, p, content, message string) error {
	if files.Exists(ctx, p) {
		return nil
	}
	err := files.Write(ctx, p, content, message)
	if errors.Is(err, storage.ErrConflict) {
		// Created concurrently.
		return nil
	}
	if err != nil {
		return fmt.Errorf("workspace: write %s: %w", p, err)
	}
	return nil
}

// LoadWorkspaceConfig reads the marker file.
func LoadWorkspaceConfig(ctx context.Context, files *storage.FileStore) (*WorkspaceConfig, error) {
	content, err := files.Read(ctx, MarkerPath)
	if err != nil {
		return nil, err
	}
	var cfg WorkspaceConfig
	if err := json.Unmarshal([]byte(content), &cfg); err != nil {
		return nil, fmt.Errorf("workspace: parse %s: %w", MarkerPath, err)
	}
	return &cfg, nil
}
