package skills

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/claybowl/taygency/internal/storage"
)

const (
	// Dir is the workspace directory of document skills.
	Dir = "skills"
	// MetaPrefix namespaces skills read from skills/_meta.
	MetaPrefix = "_meta/"

	metaDir = "_meta"
)

// Result is the outcome of Execute.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Data    any    `json:"data,omitempty"`
}

// Registry merges the static code skills with the document skills stored
// in the workspace. Documents are re-read on every call; the file store
// cache bounds the cost.
type Registry struct {
	files *storage.FileStore
	code  map[string]*Skill
}

// NewRegistry creates a registry over the workspace files.
func NewRegistry(files *storage.FileStore) *Registry {
	return &Registry{
		files: files,
		code:  make(map[string]*Skill),
	}
}

// Register adds a code skill.
func (r *Registry) Register(skill *Skill) error {
	if skill.Kind != KindCode {
		return fmt.Errorf("skill %q: only code skills can be registered", skill.Name)
	}
	if _, exists := r.code[skill.Name]; exists {
		return fmt.Errorf("skill %q already registered", skill.Name)
	}
	r.code[skill.Name] = skill
	return nil
}

// List returns code skills sorted by name, then document skills from
// skills/ and skills/_meta/ in listing order. Unreadable or malformed
// documents are skipped.
func (r *Registry) List(ctx context.Context) ([]*Skill, error) {
	result := make([]*Skill, 0, len(r.code))
	for _, name := range r.codeNames() {
		result = append(result, r.code[name])
	}

	for _, src := range []struct{ dir, prefix string }{
		{Dir, ""},
		{path.Join(Dir, metaDir), MetaPrefix},
	} {
		names, err := r.files.ListFiles(ctx, src.dir)
		if err != nil {
			return nil, fmt.Errorf("list skills: %w", err)
		}
		for _, file := range names {
			base, ok := strings.CutSuffix(file, ".md")
			if !ok {
				continue
			}
			name := src.prefix + base
			if _, shadowed := r.code[name]; shadowed {
				continue
			}
			skill, err := r.loadDocument(ctx, name)
			if err != nil {
				slog.Debug("skipping skill document", "name", name, "error", err)
				continue
			}
			result = append(result, skill)
		}
	}
	return result, nil
}

// Get returns a skill by name, or ErrUnknownSkill.
func (r *Registry) Get(ctx context.Context, name string) (*Skill, error) {
	if s, ok := r.code[name]; ok {
		return s, nil
	}
	skill, err := r.loadDocument(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, ErrUnknownSkill) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSkill, name)
		}
		return nil, err
	}
	return skill, nil
}

// Execute returns the instructions of a document skill for the model to
// follow. Code skills are run through their own sub-tools, so Execute only
// points at them. An unknown skill is reported as an unsuccessful result.
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any) (Result, error) {
	skill, err := r.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrUnknownSkill) || errors.Is(err, ErrMalformedDocument) {
			return Result{Success: false, Output: fmt.Sprintf("Skill not found: %s", name)}, nil
		}
		return Result{}, err
	}

	if skill.IsCode() {
		names := make([]string, 0, len(skill.Tools))
		for _, t := range skill.Tools {
			names = append(names, t.Name)
		}
		return Result{
			Success: false,
			Output:  fmt.Sprintf("Skill %s is code-based; call its tools directly: %s", name, strings.Join(names, ", ")),
			Data:    map[string]any{"tools": names},
		}, nil
	}

	res := Result{Success: true, Output: skill.Content}
	if len(params) > 0 {
		res.Data = map[string]any{"params": params}
	}
	return res, nil
}

func (r *Registry) loadDocument(ctx context.Context, name string) (*Skill, error) {
	p, ok := documentPath(name)
	if !ok {
		return nil, fmt.Errorf("%w: invalid name %q", ErrUnknownSkill, name)
	}
	content, err := r.files.Read(ctx, p)
	if err != nil {
		return nil, err
	}
	return ParseDocument(name, content)
}

func (r *Registry) codeNames() []string {
	names := make([]string, 0, len(r.code))
	for name := range r.code {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
