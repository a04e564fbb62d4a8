package trace

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/claybowl/taygency/internal/storage"
)

// DefaultDir is where trace documents are written in the workspace.
const DefaultDir = "conversations/traces"

// Store persists trace documents, one per run, addressable by trace ID.
type Store struct {
	files *storage.FileStore
	dir   string
}

// NewStore creates a Store writing under dir ("" = DefaultDir).
func NewStore(files *storage.FileStore, dir string) *Store {
	if dir == "" {
		dir = DefaultDir
	}
	return &Store{files: files, dir: dir}
}

func (s *Store) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, "/\\") || strings.Contains(id, "..") {
		return "", fmt.Errorf("trace: invalid id %q", id)
	}
	return path.Join(s.dir, id+".json"), nil
}

// Save writes doc as indented JSON.
func (s *Store) Save(ctx context.Context, doc Document) error {
	p, err := s.path(doc.TraceID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("trace: marshal: %w", err)
	}
	if err := s.files.Write(ctx, p, string(data)+"\n", "Trace "+doc.TraceID); err != nil {
		return fmt.Errorf("trace: save: %w", err)
	}
	return nil
}

// Get loads a trace document. A missing trace yields storage.ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Document, error) {
	p, err := s.path(id)
	if err != nil {
		return nil, err
	}
	content, err := s.files.Read(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("trace: get: %w", err)
	}
	var doc Document
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("trace: decode %s: %w", id, err)
	}
	return &doc, nil
}
