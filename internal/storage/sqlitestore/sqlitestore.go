// Package sqlitestore implements a storage.Backend over an embedded SQLite
// database. Each row carries a monotonically increasing version used as the
// version tag.
package sqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/claybowl/taygency/internal/storage"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// Store is a workspace file tree held in one SQLite table.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("sqlitestore: create dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: open: %w", err)
	}
	// One writer at a time keeps version checks and updates serialized.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: ping: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlitestore: init schema: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS schema_meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS files (
			path       TEXT PRIMARY KEY,
			content    TEXT NOT NULL,
			version    INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}

	var current string
	err = tx.QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := tx.Exec(`INSERT INTO schema_meta (key, value) VALUES ('schema_version', ?)`, strconv.Itoa(schemaVersion)); err != nil {
			return err
		}
	case err != nil:
		return err
	default:
		v, err := strconv.Atoi(current)
		if err != nil {
			return fmt.Errorf("parse schema version %q: %w", current, err)
		}
		if v > schemaVersion {
			return fmt.Errorf("db schema version %d is newer than runtime version %d", v, schemaVersion)
		}
	}
	return tx.Commit()
}

// Get reads a file.
func (s *Store) Get(ctx context.Context, p string) (*storage.File, error) {
	var (
		content string
		version int64
	)
	err := s.db.QueryRowContext(ctx, `SELECT content, version FROM files WHERE path = ?`, p).Scan(&content, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, upstream(ctx, "get", p, err)
	}
	return &storage.File{Path: p, Content: content, Version: strconv.FormatInt(version, 10)}, nil
}

// Put inserts a new file when version is empty, otherwise updates the row
// only if its version still matches.
func (s *Store) Put(ctx context.Context, p, content, version, _ string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if version == "" {
		res, err := s.db.ExecContext(ctx,
			`INSERT INTO files (path, content, version, updated_at) VALUES (?, ?, 1, ?) ON CONFLICT(path) DO NOTHING`,
			p, content, now)
		if err != nil {
			return upstream(ctx, "put", p, err)
		}
		return expectOne(res, p)
	}

	v, err := strconv.ParseInt(version, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: %s: malformed version %q", storage.ErrConflict, p, version)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE files SET content = ?, version = version + 1, updated_at = ? WHERE path = ? AND version = ?`,
		content, now, p, v)
	if err != nil {
		return upstream(ctx, "put", p, err)
	}
	return expectOne(res, p)
}

// Delete removes a file whose version matches; an empty version deletes unconditionally.
func (s *Store) Delete(ctx context.Context, p, version, _ string) error {
	var (
		res sql.Result
		err error
	)
	if version == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM files WHERE path = ?`, p)
	} else {
		v, perr := strconv.ParseInt(version, 10, 64)
		if perr != nil {
			return fmt.Errorf("%w: %s: malformed version %q", storage.ErrConflict, p, version)
		}
		res, err = s.db.ExecContext(ctx, `DELETE FROM files WHERE path = ? AND version = ?`, p, v)
	}
	if err != nil {
		return upstream(ctx, "delete", p, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return upstream(ctx, "delete", p, err)
	}
	if n == 0 {
		if _, gerr := s.Get(ctx, p); errors.Is(gerr, storage.ErrNotFound) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("%w: %s changed since it was read", storage.ErrConflict, p)
	}
	return nil
}

// List returns the entries directly under dir. Directories are implicit:
// they exist while at least one file lives below them.
func (s *Store) List(ctx context.Context, dir string) ([]storage.Entry, error) {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT path FROM files WHERE substr(path, 1, ?) = ? ORDER BY path`, len(prefix), prefix)
	if err != nil {
		return nil, upstream(ctx, "list", dir, err)
	}
	defer rows.Close()

	seen := make(map[string]bool)
	var entries []storage.Entry
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, upstream(ctx, "list", dir, err)
		}
		name, _, nested := strings.Cut(p[len(prefix):], "/")
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		entries = append(entries, storage.Entry{Name: name, IsDir: nested})
	}
	if err := rows.Err(); err != nil {
		return nil, upstream(ctx, "list", dir, err)
	}
	if len(entries) == 0 {
		return nil, storage.ErrNotFound
	}
	return entries, nil
}

func expectOne(res sql.Result, p string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %s: %v", storage.ErrUpstream, p, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s changed since it was read", storage.ErrConflict, p)
	}
	return nil
}

func upstream(ctx context.Context, op, p string, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("sqlitestore %s %s: %w", op, p, ctx.Err())
	}
	return fmt.Errorf("%w: sqlitestore %s %s: %v", storage.ErrUpstream, op, p, err)
}

var _ storage.Backend = (*Store)(nil)
