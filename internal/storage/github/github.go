// Package github implements a storage.Backend over the GitHub contents API.
// The blob SHA of each file is its version tag.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v69/github"

	"github.com/claybowl/taygency/internal/storage"
)

// DefaultBaseURL is the public GitHub API endpoint.
const DefaultBaseURL = "https://api.github.com"

// Config identifies the repository holding the workspace.
type Config struct {
	Owner   string
	Repo    string
	Branch  string // default "main"
	Token   string
	BaseURL string // default DefaultBaseURL
}

// Store talks to one repository branch.
type Store struct {
	cfg    Config
	client *gh.Client
}

// New creates a Store. A nil client means a default http.Client.
func New(cfg Config, httpClient *http.Client) (*Store, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("github: owner and repo are required")
	}
	if cfg.Branch == "" {
		cfg.Branch = "main"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	client := gh.NewClient(httpClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	base, err := url.Parse(cfg.BaseURL + "/")
	if err != nil {
		return nil, fmt.Errorf("github: base url: %w", err)
	}
	client.BaseURL = base
	return &Store{cfg: cfg, client: client}, nil
}

// Get reads a file at the configured branch. A directory is ErrNotFound.
func (s *Store) Get(ctx context.Context, p string) (*storage.File, error) {
	file, _, _, err := s.client.Repositories.GetContents(ctx, s.cfg.Owner, s.cfg.Repo, p,
		&gh.RepositoryContentGetOptions{Ref: s.cfg.Branch})
	if err != nil {
		return nil, mapError(err, http.MethodGet, p)
	}
	if file == nil || file.GetType() != "file" {
		return nil, storage.ErrNotFound
	}

	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", storage.ErrUpstream, p, err)
	}
	return &storage.File{Path: p, Content: content, Version: file.GetSHA()}, nil
}

// Put creates or updates a file as one commit. GitHub rejects a stale SHA
// with 409, and a missing SHA for an existing file with 422.
func (s *Store) Put(ctx context.Context, p, content, version, message string) error {
	opts := &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(commitMessage(message, "Update", p)),
		Content: []byte(content),
		Branch:  gh.Ptr(s.cfg.Branch),
	}

	var err error
	if version == "" {
		_, _, err = s.client.Repositories.CreateFile(ctx, s.cfg.Owner, s.cfg.Repo, p, opts)
	} else {
		opts.SHA = gh.Ptr(version)
		_, _, err = s.client.Repositories.UpdateFile(ctx, s.cfg.Owner, s.cfg.Repo, p, opts)
	}
	if err != nil {
		return mapError(err, http.MethodPut, p)
	}
	return nil
}

// Delete removes a file as one commit. An empty version deletes whatever is
// current.
func (s *Store) Delete(ctx context.Context, p, version, message string) error {
	if version == "" {
		f, err := s.Get(ctx, p)
		if err != nil {
			return err
		}
		version = f.Version
	}
	_, _, err := s.client.Repositories.DeleteFile(ctx, s.cfg.Owner, s.cfg.Repo, p, &gh.RepositoryContentFileOptions{
		Message: gh.Ptr(commitMessage(message, "Delete", p)),
		SHA:     gh.Ptr(version),
		Branch:  gh.Ptr(s.cfg.Branch),
	})
	if err != nil {
		return mapError(err, http.MethodDelete, p)
	}
	return nil
}

// List returns the entries directly under dir. A file is ErrNotFound.
func (s *Store) List(ctx context.Context, dir string) ([]storage.Entry, error) {
	file, items, _, err := s.client.Repositories.GetContents(ctx, s.cfg.Owner, s.cfg.Repo, dir,
		&gh.RepositoryContentGetOptions{Ref: s.cfg.Branch})
	if err != nil {
		return nil, mapError(err, http.MethodGet, dir)
	}
	if file != nil {
		return nil, storage.ErrNotFound
	}

	entries := make([]storage.Entry, 0, len(items))
	for _, item := range items {
		switch item.GetType() {
		case "file":
			entries = append(entries, storage.Entry{Name: item.GetName()})
		case "dir":
			entries = append(entries, storage.Entry{Name: item.GetName(), IsDir: true})
		}
	}
	return entries, nil
}

func commitMessage(message, verb, p string) string {
	if message != "" {
		return message
	}
	return verb + " " + p
}

// mapError translates go-github errors into storage error kinds.
func mapError(err error, method, p string) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("github %s %s: %w", method, p, err)
	}
	var resp *gh.ErrorResponse
	if errors.As(err, &resp) && resp.Response != nil {
		switch resp.Response.StatusCode {
		case http.StatusNotFound:
			return storage.ErrNotFound
		case http.StatusConflict, http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: github %s %s: %s", storage.ErrConflict, method, p, resp.Message)
		default:
			return fmt.Errorf("%w: github %s %s: %d %s", storage.ErrUpstream, method, p, resp.Response.StatusCode, resp.Message)
		}
	}
	return fmt.Errorf("%w: github %s %s: %v", storage.ErrUpstream, method, p, err)
}

var _ storage.Backend = (*Store)(nil)
