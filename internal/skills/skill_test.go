package skills

import (
	"errors"
	"strings"
	"testing"
)

func TestParseDocument_Purpose(t *testing.T) {
	content := "---\nversion: 2.1.0\ntrigger: The user sends a brain dump.\n---\n\n# Task Capture\n\n## Purpose\nTurn loose notes into\nclean tasks.\n\n## Steps\n1. Read.\n"
	s, err := ParseDocument("task-capture", content)
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if s.Description != "Turn loose notes into clean tasks." {
		t.Errorf("Description: got %q", s.Description)
	}
	if s.Version != "2.1.0" || s.Trigger != "The user sends a brain dump." {
		t.Errorf("metadata: got version %q trigger %q", s.Version, s.Trigger)
	}
	if s.Kind != KindDocument || s.Content != content {
		t.Errorf("expected document skill with raw content, got %+v", s)
	}
}

func TestParseDocument_FirstLineFallback(t *testing.T) {
	s, err := ParseDocument("weekly-review", "\n\n## Weekly Review Ritual\n\nSome text.\n")
	if err != nil {
		t.Fatalf("ParseDocument: %v", err)
	}
	if s.Description != "Weekly Review Ritual" {
		t.Errorf("Description: got %q", s.Description)
	}
	if s.Version != DefaultVersion {
		t.Errorf("Version: got %q", s.Version)
	}
}

func TestParseDocument_Malformed(t *testing.T) {
	for _, content := range []string{"", "   \n", "---\nversion: [\n---\nbody"} {
		if _, err := ParseDocument("x", content); !errors.Is(err, ErrMalformedDocument) {
			t.Errorf("ParseDocument(%q): got %v, want ErrMalformedDocument", content, err)
		}
	}
}

func TestParseManifest(t *testing.T) {
	s, err := ParseManifest(planningManifest)
	if err != nil {
		t.Fatalf("ParseManifest: %v", err)
	}
	if s.Name != PlanningSkillName || s.Version != "1.0.0" || !s.IsCode() {
		t.Errorf("unexpected skill %+v", s)
	}
	if len(s.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(s.Tools))
	}
	reschedule := s.Tools[1]
	if reschedule.Name != "plan_reschedule_task" || !reschedule.Parameters["task_id"].Required {
		t.Errorf("unexpected reschedule tool %+v", reschedule)
	}
}

func TestParseManifest_Invalid(t *testing.T) {
	cases := []string{
		`{"name": "x"}`,
		`{"name": "x", "description": "d", "tools": [{"name": "a"}, {"name": "a"}]}`,
		`{not json`,
	}
	for _, c := range cases {
		if _, err := ParseManifest([]byte(c)); err == nil {
			t.Errorf("ParseManifest(%s): expected error", c)
		}
	}
}

func TestDocumentPath(t *testing.T) {
	if p, ok := documentPath("task-capture"); !ok || p != "skills/task-capture.md" {
		t.Errorf("got %q, %v", p, ok)
	}
	if p, ok := documentPath("_meta/skill-authoring"); !ok || p != "skills/_meta/skill-authoring.md" {
		t.Errorf("got %q, %v", p, ok)
	}
	for _, bad := range []string{"", "_meta/", "../config", "a/b"} {
		if _, ok := documentPath(bad); ok {
			t.Errorf("documentPath(%q): expected rejection", bad)
		}
	}
	if !strings.HasPrefix(MetaPrefix, metaDir) {
		t.Error("meta prefix must name the meta directory")
	}
}
