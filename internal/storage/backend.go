// Package storage provides the workspace file store: a cached, optimistically
// concurrent view over a versioned file tree.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
)

var (
	// ErrNotFound is returned when a file or directory does not exist.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a write carries a stale version tag.
	ErrConflict = errors.New("storage: version conflict")
	// ErrUpstream wraps transport failures of the underlying store.
	ErrUpstream = errors.New("storage: upstream failure")
	// ErrTimeout is returned when a storage call exceeds its deadline.
	ErrTimeout = errors.New("storage: timeout")
	// ErrInvalidPath is returned for absolute paths or paths escaping the workspace.
	ErrInvalidPath = errors.New("storage: invalid path")
)

// File is a single remote file and the version tag it was read at.
type File struct {
	Path    string
	Content string
	Version string
}

// Entry is one item of a directory listing.
type Entry struct {
	Name  string
	IsDir bool
}

// Backend is a versioned file tree. Implementations must reject a Put or
// Delete whose version does not match the current one with ErrConflict.
// An empty version on Put means "create"; it conflicts when the file exists.
type Backend interface {
	Get(ctx context.Context, path string) (*File, error)
	Put(ctx context.Context, path, content, version, message string) error
	Delete(ctx context.Context, path, version, message string) error
	List(ctx context.Context, dir string) ([]Entry, error)
}

// CleanPath normalizes a workspace-relative path ("a/b.md").
// The empty string and "/" denote the workspace root.
func CleanPath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if strings.HasPrefix(p, "/") {
		trimmed := strings.TrimLeft(p, "/")
		if trimmed != "" {
			return "", fmt.Errorf("%w: %q is absolute", ErrInvalidPath, p)
		}
		return "", nil
	}
	if p == "" || p == "." {
		return "", nil
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", fmt.Errorf("%w: %q escapes the workspace", ErrInvalidPath, p)
		}
	}
	return path.Clean(p), nil
}

// Join joins workspace path segments.
func Join(elem ...string) string {
	return strings.TrimPrefix(path.Join(elem...), "/")
}
