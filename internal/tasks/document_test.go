package tasks

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	due := time.Date(2026, 3, 14, 9, 30, 0, 0, time.FixedZone("CST", -6*3600))
	created := time.Date(2026, 3, 13, 18, 0, 0, 123456789, time.UTC)
	in := &Task{
		ID:       "task_abc_123456",
		Title:    "Call the dentist",
		Status:   StatusActive,
		Priority: PriorityHigh,
		Category: "health",
		Energy:   "low",
		Duration: "15m",
		Context:  []string{"@phone", "@home"},
		Due:      &due,
		Project:  "Self care",
		Source:   "sms",
		Notes:    "Ask about the cleaning.\nBring the insurance card.",
		Subtasks: []Subtask{{Title: "Find number", Done: true}, {Title: "Book slot"}},
		Created:  created,
		Updated:  created,
	}

	doc, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, want := range []string{"# Call the dentist\n", "## Notes\n", "## Subtasks\n", "- [x] Find number\n", "- [ ] Book slot\n"} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}

	out, err := Unmarshal(doc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	assertTaskEqual(t, out, in)

	// Notes keep lines that only look like headers or checklist items.
	for _, notes := range []string{
		"Call ref\n#42 on the form",
		"Bring:\n- [ ] insurance card",
	} {
		in.Notes = notes
		doc, err := Marshal(in)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		out, err := Unmarshal(doc)
		if err != nil {
			t.Fatalf("Unmarshal: %v", err)
		}
		assertTaskEqual(t, out, in)
	}
}

func TestRoundTripMinimal(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in := &Task{ID: "task_x", Title: "Buy milk", Status: StatusSomeday, Priority: PriorityLow, Category: "inbox", Created: created, Updated: created}

	doc, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, absent := range []string{"energy:", "due:", "context:", "## Notes", "## Subtasks"} {
		if strings.Contains(doc, absent) {
			t.Errorf("unexpected %q in minimal document:\n%s", absent, doc)
		}
	}

	out, err := Unmarshal(doc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	assertTaskEqual(t, out, in)
	if out.Due != nil || out.Context != nil || out.Subtasks != nil || out.Notes != "" {
		t.Errorf("absent fields became present: %+v", out)
	}
}

func TestUnmarshalNotesStopAtNextHeader(t *testing.T) {
	doc := "---\nid: t1\ntitle: T\nstatus: active\npriority: medium\ncategory: inbox\n---\n\n# T\n\n## Notes\nfirst line\n\n## Links\nhttp://example.com\n"
	out, err := Unmarshal(doc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Notes != "first line" {
		t.Errorf("Notes: got %q", out.Notes)
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	cases := map[string]string{
		"no metadata":   "# just a title\n",
		"bad yaml":      "---\nid: [x\n---\n",
		"missing title": "---\nid: t1\nstatus: active\n---\n",
		"bad status":    "---\nid: t1\ntitle: T\nstatus: archived\n---\n",
		"bad timestamp": "---\nid: t1\ntitle: T\nstatus: active\ncreated: yesterday\n---\n",
		"bad priority":  "---\nid: t1\ntitle: T\nstatus: active\npriority: urgent\n---\n",
	}
	for name, doc := range cases {
		if _, err := Unmarshal(doc); !errors.Is(err, ErrMalformedDocument) {
			t.Errorf("%s: got %v, want ErrMalformedDocument", name, err)
		}
	}
}

func TestNewID(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	a, b := NewID(now), NewID(now)
	if a == b {
		t.Errorf("expected distinct ids, got %q twice", a)
	}
	if !strings.HasPrefix(a, "task_loyw3v28_") || len(a) != len("task_loyw3v28_")+6 {
		t.Errorf("unexpected id format %q", a)
	}
}

func TestParseTime(t *testing.T) {
	for _, s := range []string{"2026-03-14", "2026-03-14T09:30:00", "2026-03-14T09:30:00Z", "2026-03-14T09:30:00-06:00"} {
		if _, err := ParseTime(s); err != nil {
			t.Errorf("ParseTime(%q): %v", s, err)
		}
	}
	if _, err := ParseTime("tomorrow"); err == nil {
		t.Error("expected error for free text")
	}
}

func assertTaskEqual(t *testing.T, got, want *Task) {
	t.Helper()
	if got.ID != want.ID || got.Title != want.Title || got.Status != want.Status ||
		got.Priority != want.Priority || got.Category != want.Category || got.Energy != want.Energy ||
		got.Duration != want.Duration || got.Project != want.Project || got.Source != want.Source ||
		got.Notes != want.Notes {
		t.Errorf("scalar fields differ:\ngot  %+v\nwant %+v", got, want)
	}
	if strings.Join(got.Context, ",") != strings.Join(want.Context, ",") {
		t.Errorf("Context: got %v, want %v", got.Context, want.Context)
	}
	if (got.Due == nil) != (want.Due == nil) || (got.Due != nil && !got.Due.Equal(*want.Due)) {
		t.Errorf("Due: got %v, want %v", got.Due, want.Due)
	}
	if !got.Created.Equal(want.Created) || !got.Updated.Equal(want.Updated) {
		t.Errorf("timestamps: got %v/%v, want %v/%v", got.Created, got.Updated, want.Created, want.Updated)
	}
	if len(got.Subtasks) != len(want.Subtasks) {
		t.Fatalf("Subtasks: got %v, want %v", got.Subtasks, want.Subtasks)
	}
	for i := range want.Subtasks {
		if got.Subtasks[i] != want.Subtasks[i] {
			t.Errorf("Subtasks[%d]: got %+v, want %+v", i, got.Subtasks[i], want.Subtasks[i])
		}
	}
}
