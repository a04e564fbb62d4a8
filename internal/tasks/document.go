package tasks

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/claybowl/taygency/internal/frontmatter"
)

// metadata is the YAML block of a task document. Field order is the on-disk key order.
type metadata struct {
	ID       string   `yaml:"id"`
	Title    string   `yaml:"title"`
	Status   string   `yaml:"status"`
	Priority string   `yaml:"priority"`
	Category string   `yaml:"category"`
	Energy   string   `yaml:"energy,omitempty"`
	Duration string   `yaml:"duration,omitempty"`
	Context  []string `yaml:"context,omitempty,flow"`
	Due      string   `yaml:"due,omitempty"`
	Project  string   `yaml:"project,omitempty"`
	Source   string   `yaml:"source,omitempty"`
	Created  string   `yaml:"created"`
	Updated  string   `yaml:"updated"`
}

var (
	// notesRe captures the Notes section up to the next markdown header or end of text.
	notesRe = regexp.MustCompile(`(?ms)^## Notes[ \t]*\n(.*?)(?:^#{1,6}[ \t]|\z)`)
	// subtasksRe captures the Subtasks section the same way.
	subtasksRe = regexp.MustCompile(`(?ms)^## Subtasks[ \t]*\n(.*?)(?:^#{1,6}[ \t]|\z)`)
	// subtaskRe matches one checklist line.
	subtaskRe = regexp.MustCompile(`(?m)^[ \t]*- \[([ xX])\] (.+?)[ \t]*$`)
)

// Marshal renders a task as a markdown document with a metadata block.
func Marshal(t *Task) (string, error) {
	meta := metadata{
		ID:       t.ID,
		Title:    t.Title,
		Status:   string(t.Status),
		Priority: string(t.Priority),
		Category: t.Category,
		Energy:   t.Energy,
		Duration: t.Duration,
		Context:  t.Context,
		Project:  t.Project,
		Source:   t.Source,
		Created:  formatTime(t.Created),
		Updated:  formatTime(t.Updated),
	}
	if t.Due != nil {
		meta.Due = formatTime(*t.Due)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "# %s\n", t.Title)
	if t.Notes != "" {
		fmt.Fprintf(&body, "\n## Notes\n%s\n", t.Notes)
	}
	if len(t.Subtasks) > 0 {
		body.WriteString("\n## Subtasks\n")
		for _, st := range t.Subtasks {
			mark := " "
			if st.Done {
				mark = "x"
			}
			fmt.Fprintf(&body, "- [%s] %s\n", mark, st.Title)
		}
	}

	return frontmatter.Encode(meta, body.String())
}

// Unmarshal parses a task document. Any metadata problem yields ErrMalformedDocument.
func Unmarshal(content string) (*Task, error) {
	var meta metadata
	body, err := frontmatter.Decode(content, &meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if meta.ID == "" || strings.TrimSpace(meta.Title) == "" {
		return nil, fmt.Errorf("%w: id and title are required", ErrMalformedDocument)
	}

	t := &Task{
		ID:       meta.ID,
		Title:    meta.Title,
		Status:   Status(meta.Status),
		Priority: Priority(meta.Priority),
		Category: meta.Category,
		Energy:   meta.Energy,
		Duration: meta.Duration,
		Context:  meta.Context,
		Project:  meta.Project,
		Source:   meta.Source,
	}
	if !t.Status.Valid() {
		return nil, fmt.Errorf("%w: invalid status %q", ErrMalformedDocument, meta.Status)
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if !t.Priority.Valid() {
		return nil, fmt.Errorf("%w: invalid priority %q", ErrMalformedDocument, meta.Priority)
	}
	if t.Category == "" {
		t.Category = DefaultCategory
	}

	if t.Created, err = parseStamp("created", meta.Created); err != nil {
		return nil, err
	}
	if t.Updated, err = parseStamp("updated", meta.Updated); err != nil {
		return nil, err
	}
	if meta.Due != "" {
		due, err := ParseTime(meta.Due)
		if err != nil {
			return nil, fmt.Errorf("%w: due: %v", ErrMalformedDocument, err)
		}
		t.Due = &due
	}

	if m := notesRe.FindStringSubmatch(body); m != nil {
		t.Notes = strings.TrimSpace(m[1])
	}
	if section := subtasksRe.FindStringSubmatch(body); section != nil {
		for _, m := range subtaskRe.FindAllStringSubmatch(section[1], -1) {
			t.Subtasks = append(t.Subtasks, Subtask{Title: m[2], Done: m[1] != " "})
		}
	}
	return t, nil
}

func parseStamp(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, field, err)
	}
	return ts, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
