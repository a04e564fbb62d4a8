package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

const (
	// DefaultCacheTTL is how long a read is served from the cache.
	DefaultCacheTTL = 60 * time.Second
	// DefaultTimeout bounds every single backend call.
	DefaultTimeout = 30 * time.Second
)

// Options configures a FileStore.
type Options struct {
	CacheTTL time.Duration // 0 = DefaultCacheTTL, negative disables the cache
	Timeout  time.Duration // 0 = DefaultTimeout, negative disables the deadline
	Now      func() time.Time
}

// FileStore is the workspace file adapter. One instance is shared by every
// run in the process, cache included.
type FileStore struct {
	backend Backend
	cache   *readCache
	timeout time.Duration
}

// NewFileStore wraps a backend with a read cache and per-call deadlines.
func NewFileStore(backend Backend, opts Options) *FileStore {
	ttl := opts.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &FileStore{
		backend: backend,
		cache:   newReadCache(ttl, now),
		timeout: timeout,
	}
}

// Read returns the content of path. A missing file yields ErrNotFound.
func (fs *FileStore) Read(ctx context.Context, path string) (string, error) {
	f, err := fs.fetch(ctx, path)
	if err != nil {
		return "", err
	}
	return f.content, nil
}

// fetch returns the cached file when fresh, otherwise reads it remotely and caches it.
func (fs *FileStore) fetch(ctx context.Context, path string) (cachedFile, error) {
	p, err := CleanPath(path)
	if err != nil {
		return cachedFile{}, err
	}
	if f, ok := fs.cache.get(p); ok {
		return f, nil
	}

	var file *File
	err = fs.call(ctx, func(ctx context.Context) error {
		var err error
		file, err = fs.backend.Get(ctx, p)
		return err
	})
	if err != nil {
		return cachedFile{}, fmt.Errorf("read %s: %w", p, err)
	}
	file.Path = p
	fs.cache.put(file)
	return cachedFile{path: p, content: file.Content, version: file.Version}, nil
}

// Write stores content at path, creating it if needed. The version tag comes
// from the cache or a fresh read; a stale tag surfaces as ErrConflict and is
// not retried.
func (fs *FileStore) Write(ctx context.Context, path, content, message string) error {
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	if p == "" {
		return fmt.Errorf("%w: cannot write the workspace root", ErrInvalidPath)
	}

	version, err := fs.currentVersion(ctx, p)
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	if message == "" {
		message = "Update " + p
	}

	err = fs.call(ctx, func(ctx context.Context) error {
		return fs.backend.Put(ctx, p, content, version, message)
	})
	// Success and conflict both make the cached copy untrustworthy.
	fs.cache.invalidate(p)
	if err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}

// currentVersion returns the version tag of p, or "" if it does not exist.
func (fs *FileStore) currentVersion(ctx context.Context, p string) (string, error) {
	f, err := fs.fetch(ctx, p)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return f.version, nil
}

// Delete removes path. Deleting a missing file yields ErrNotFound.
func (fs *FileStore) Delete(ctx context.Context, path, message string) error {
	p, err := CleanPath(path)
	if err != nil {
		return err
	}
	f, err := fs.fetch(ctx, p)
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	if message == "" {
		message = "Delete " + p
	}

	err = fs.call(ctx, func(ctx context.Context) error {
		return fs.backend.Delete(ctx, p, f.version, message)
	})
	fs.cache.invalidate(p)
	if err != nil {
		return fmt.Errorf("delete %s: %w", p, err)
	}
	return nil
}

// Move writes the content of from to to, then deletes from. It is not
// atomic: if the delete fails both copies remain and the error is returned.
func (fs *FileStore) Move(ctx context.Context, from, to, message string) error {
	content, err := fs.Read(ctx, from)
	if err != nil {
		return fmt.Errorf("move: %w", err)
	}
	if message == "" {
		message = fmt.Sprintf("Move %s to %s", from, to)
	}
	if err := fs.Write(ctx, to, content, message); err != nil {
		return fmt.Errorf("move: %w", err)
	}
	if err := fs.Delete(ctx, from, message); err != nil {
		slog.Warn("move left a duplicate copy", "from", from, "to", to, "error", err)
		return fmt.Errorf("move: %w", err)
	}
	return nil
}

// ListFiles returns the sorted names of the files directly under dir.
func (fs *FileStore) ListFiles(ctx context.Context, dir string) ([]string, error) {
	return fs.listNames(ctx, dir, false)
}

// ListSubdirectories returns the sorted names of the directories directly under dir.
func (fs *FileStore) ListSubdirectories(ctx context.Context, dir string) ([]string, error) {
	return fs.listNames(ctx, dir, true)
}

func (fs *FileStore) listNames(ctx context.Context, dir string, dirs bool) ([]string, error) {
	p, err := CleanPath(dir)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	err = fs.call(ctx, func(ctx context.Context) error {
		var err error
		entries, err = fs.backend.List(ctx, p)
		return err
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", p, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir == dirs {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Exists reports whether path can be read. Every failure, transport errors
// included, is reported as "does not exist".
func (fs *FileStore) Exists(ctx context.Context, path string) bool {
	_, err := fs.fetch(ctx, path)
	if err != nil && !errors.Is(err, ErrNotFound) {
		slog.Debug("exists check failed", "path", path, "error", err)
	}
	return err == nil
}

// call runs fn under the per-call deadline and maps deadline expiry to ErrTimeout.
func (fs *FileStore) call(ctx context.Context, fn func(ctx context.Context) error) error {
	if fs.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, fs.timeout)
		defer cancel()
	}
	err := fn(ctx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrTimeout) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
