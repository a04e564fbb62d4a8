package storage

import (
	"context"
	"fmt"
	"path"
	"strings"
	"unicode"

	"github.com/bmatcuk/doublestar/v4"
)

// snippetRadius is the number of characters kept on each side of a match.
const snippetRadius = 50

// searchableExts are the text formats considered by SearchText.
var searchableExts = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// SearchResult is one file matching a text query.
type SearchResult struct {
	Path    string `json:"path"`
	Snippet string `json:"snippet"`
}

// SearchOptions narrows a text search.
type SearchOptions struct {
	Dir  string // "" = workspace root
	Glob string // optional doublestar pattern matched against the full path
}

// SearchText walks opts.Dir recursively and returns every markdown-like file
// containing query (case-insensitive), with a snippet around the first match.
func (fs *FileStore) SearchText(ctx context.Context, query string, opts SearchOptions) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("search: query is required")
	}
	if opts.Glob != "" && !doublestar.ValidatePattern(opts.Glob) {
		return nil, fmt.Errorf("search: invalid glob %q", opts.Glob)
	}
	root, err := CleanPath(opts.Dir)
	if err != nil {
		return nil, err
	}

	var results []SearchResult
	err = fs.walk(ctx, root, func(p string) error {
		if !searchableExts[strings.ToLower(path.Ext(p))] {
			return nil
		}
		if opts.Glob != "" {
			if ok, _ := doublestar.Match(opts.Glob, p); !ok {
				return nil
			}
		}
		content, err := fs.Read(ctx, p)
		if err != nil {
			return err
		}
		if snippet, ok := Snippet(content, query); ok {
			results = append(results, SearchResult{Path: p, Snippet: snippet})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// walk calls fn for every file below dir, depth first in listing order.
func (fs *FileStore) walk(ctx context.Context, dir string, fn func(p string) error) error {
	files, err := fs.ListFiles(ctx, dir)
	if err != nil {
		return err
	}
	for _, name := range files {
		if err := fn(Join(dir, name)); err != nil {
			return err
		}
	}
	subdirs, err := fs.ListSubdirectories(ctx, dir)
	if err != nil {
		return err
	}
	for _, name := range subdirs {
		if err := fs.walk(ctx, Join(dir, name), fn); err != nil {
			return err
		}
	}
	return nil
}

// Snippet returns up to snippetRadius characters on each side of the first
// case-insensitive occurrence of query in content.
func Snippet(content, query string) (string, bool) {
	hay := []rune(content)
	needle := []rune(query)
	for i, r := range needle {
		needle[i] = unicode.ToLower(r)
	}
	if len(needle) == 0 || len(needle) > len(hay) {
		return "", false
	}

	idx := -1
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j, r := range needle {
			if unicode.ToLower(hay[i+j]) != r {
				continue outer
			}
		}
		idx = i
		break
	}
	if idx < 0 {
		return "", false
	}

	start := max(idx-snippetRadius, 0)
	end := min(idx+len(needle)+snippetRadius, len(hay))
	return string(hay[start:end]), true
}
