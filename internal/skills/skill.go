package skills

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/tailscale/hujson"

	"github.com/claybowl/taygency/internal/frontmatter"
)

// ErrUnknownSkill is returned for a name that is in neither catalog.
var ErrUnknownSkill = errors.New("skills: unknown skill")

// ErrMalformedDocument is returned when a skill document cannot be parsed.
var ErrMalformedDocument = errors.New("skills: malformed document")

// Kind distinguishes instructional documents from code-backed skills.
type Kind string

const (
	KindDocument Kind = "document"
	KindCode     Kind = "code"
)

// DefaultVersion is assigned to documents that do not declare one.
const DefaultVersion = "1.0.0"

// Param describes one sub-tool input field.
type Param struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Required    bool     `json:"required,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// SubTool is a typed operation of a code skill.
type SubTool struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Parameters  map[string]Param `json:"parameters"`
}

// Skill is one catalog entry.
type Skill struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Trigger     string    `json:"trigger,omitempty"`
	Description string    `json:"description"`
	Kind        Kind      `json:"kind"`
	Content     string    `json:"content,omitempty"`
	Tools       []SubTool `json:"tools,omitempty"`
}

// IsCode reports whether the skill is code-backed.
func (s *Skill) IsCode() bool { return s.Kind == KindCode }

// documentMeta is the optional metadata block of a skill document.
type documentMeta struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Trigger string `yaml:"trigger"`
}

var purposeRe = regexp.MustCompile(`(?ms)^## Purpose[ \t]*\n(.*?)(?:^#|\z)`)

// ParseDocument builds a document skill from markdown. The metadata block is
// optional; name falls back to the given default.
func ParseDocument(name, content string) (*Skill, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrMalformedDocument, name)
	}

	var meta documentMeta
	body, err := frontmatter.Decode(content, &meta)
	switch {
	case errors.Is(err, frontmatter.ErrMissingFrontMatter):
		body = content
	case err != nil:
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, name, err)
	}

	s := &Skill{
		Name:        name,
		Version:     meta.Version,
		Trigger:     strings.TrimSpace(meta.Trigger),
		Description: describe(body),
		Kind:        KindDocument,
		Content:     content,
	}
	if s.Version == "" {
		s.Version = DefaultVersion
	}
	return s, nil
}

// describe returns the Purpose section, else the first non-blank line
// without leading header markers.
func describe(body string) string {
	if m := purposeRe.FindStringSubmatch(body); m != nil {
		if purpose := strings.TrimSpace(m[1]); purpose != "" {
			return collapse(purpose)
		}
	}
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "#"))
		if line != "" {
			return line
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// manifest is the JSONC declaration of a code skill.
type manifest struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Trigger     string    `json:"trigger"`
	Description string    `json:"description"`
	Tools       []SubTool `json:"tools"`
}

// ParseManifest decodes a JSONC code-skill manifest.
func ParseManifest(data []byte) (*Skill, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parse skill manifest: %w", err)
	}
	var m manifest
	if err := json.Unmarshal(std, &m); err != nil {
		return nil, fmt.Errorf("parse skill manifest: %w", err)
	}
	if m.Name == "" || m.Description == "" {
		return nil, fmt.Errorf("skill manifest: name and description are required")
	}
	if m.Version == "" {
		m.Version = DefaultVersion
	}
	seen := make(map[string]bool, len(m.Tools))
	for _, t := range m.Tools {
		if t.Name == "" {
			return nil, fmt.Errorf("skill %q: tool name is required", m.Name)
		}
		if seen[t.Name] {
			return nil, fmt.Errorf("skill %q: duplicate tool %q", m.Name, t.Name)
		}
		seen[t.Name] = true
	}
	return &Skill{
		Name:        m.Name,
		Version:     m.Version,
		Trigger:     m.Trigger,
		Description: m.Description,
		Kind:        KindCode,
		Tools:       m.Tools,
	}, nil
}

// documentPath maps a document skill name to its workspace path.
// "_meta/x" lives at skills/_meta/x.md, anything else at skills/<name>.md.
func documentPath(name string) (string, bool) {
	base, isMeta := strings.CutPrefix(name, MetaPrefix)
	if base == "" || strings.ContainsAny(base, "/\\") || strings.Contains(base, "..") {
		return "", false
	}
	if isMeta {
		return path.Join(Dir, metaDir, base+".md"), true
	}
	return path.Join(Dir, base+".md"), true
}
