// Package dirstore implements a storage.Backend over a local directory.
// Version tags are the SHA-256 of the file content.
package dirstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/claybowl/taygency/internal/storage"
)

// DirStore is a versioned file tree rooted at a local directory.
type DirStore struct {
	mu      sync.RWMutex
	baseDir string
}

// New creates a DirStore rooted at baseDir.
func New(baseDir string) *DirStore {
	return &DirStore{baseDir: baseDir}
}

// Root returns the base directory.
func (ds *DirStore) Root() string { return ds.baseDir }

func (ds *DirStore) abs(p string) string {
	return filepath.Join(ds.baseDir, filepath.FromSlash(p))
}

// Version computes the tag of a content blob.
func Version(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Get reads a file.
func (ds *DirStore) Get(_ context.Context, p string) (*storage.File, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	data, err := ds.read(p)
	if err != nil {
		return nil, err
	}
	return &storage.File{Path: p, Content: string(data), Version: Version(string(data))}, nil
}

func (ds *DirStore) read(p string) ([]byte, error) {
	info, err := os.Stat(ds.abs(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%w: stat %s: %v", storage.ErrUpstream, p, err)
	}
	if info.IsDir() {
		return nil, storage.ErrNotFound
	}
	data, err := os.ReadFile(ds.abs(p))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", storage.ErrUpstream, p, err)
	}
	return data, nil
}

// current returns the version of p, or "" when it does not exist.
func (ds *DirStore) current(p string) (string, error) {
	data, err := ds.read(p)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return Version(string(data)), nil
}

// Put atomically writes content using a temp file + rename.
func (ds *DirStore) Put(_ context.Context, p, content, version, _ string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	cur, err := ds.current(p)
	if err != nil {
		return err
	}
	if cur != version {
		return fmt.Errorf("%w: %s is at %.8s, write expected %.8s", storage.ErrConflict, p, cur, version)
	}

	path := ds.abs(p)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: create dir: %v", storage.ErrUpstream, err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(content), 0o644); err != nil {
		return fmt.Errorf("%w: write tmp: %v", storage.ErrUpstream, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename: %v", storage.ErrUpstream, err)
	}
	return nil
}

// Delete removes a file whose version matches.
func (ds *DirStore) Delete(_ context.Context, p, version, _ string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	cur, err := ds.current(p)
	if err != nil {
		return err
	}
	if cur == "" {
		return storage.ErrNotFound
	}
	if version != "" && cur != version {
		return fmt.Errorf("%w: %s changed since it was read", storage.ErrConflict, p)
	}
	if err := os.Remove(ds.abs(p)); err != nil {
		return fmt.Errorf("%w: remove %s: %v", storage.ErrUpstream, p, err)
	}
	return nil
}

// List returns the entries directly under dir, skipping in-flight temp files.
func (ds *DirStore) List(_ context.Context, dir string) ([]storage.Entry, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	entries, err := os.ReadDir(ds.abs(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("%w: list %s: %v", storage.ErrUpstream, dir, err)
	}

	result := make([]storage.Entry, 0, len(entries))
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".tmp") {
			continue
		}
		result = append(result, storage.Entry{Name: entry.Name(), IsDir: entry.IsDir()})
	}
	return result, nil
}

var _ storage.Backend = (*DirStore)(nil)
