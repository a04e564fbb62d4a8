// Package frontmatter encodes and decodes two-part documents: a YAML metadata
// block between `---` fences followed by a free-text body.
package frontmatter

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrMissingFrontMatter indicates the document did not start with a YAML fence.
	ErrMissingFrontMatter = errors.New("frontmatter: missing metadata block")
	// ErrMalformedFrontMatter indicates the metadata block is unterminated or not valid YAML.
	ErrMalformedFrontMatter = errors.New("frontmatter: malformed metadata block")
)

const fence = "---"

// Document is the parsed two-part form. Meta holds the raw YAML of the
// metadata block, key order preserved.
type Document struct {
	Meta []byte
	Body string
}

// Split separates the metadata block from the body without decoding it.
func Split(content string) (Document, error) {
	normalized := normalizeNewlines(content)
	if !strings.HasPrefix(normalized, fence+"\n") {
		return Document{}, ErrMissingFrontMatter
	}
	rest := normalized[len(fence)+1:]

	// Empty metadata block.
	if strings.HasPrefix(rest, fence+"\n") || rest == fence {
		return Document{Body: trimBody(strings.TrimPrefix(rest, fence))}, nil
	}

	meta, body, ok := strings.Cut(rest, "\n"+fence+"\n")
	if !ok {
		trimmed, found := strings.CutSuffix(rest, "\n"+fence)
		if !found {
			return Document{}, ErrMalformedFrontMatter
		}
		meta, body = trimmed, ""
	}
	return Document{Meta: []byte(meta), Body: trimBody(body)}, nil
}

// Decode parses content, unmarshals the metadata block into v and returns the body.
func Decode(content string, v any) (string, error) {
	doc, err := Split(content)
	if err != nil {
		return "", err
	}
	if err := yaml.Unmarshal(doc.Meta, v); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedFrontMatter, err)
	}
	return doc.Body, nil
}

// Encode renders v as the metadata block followed by body.
func Encode(v any, body string) (string, error) {
	var meta bytes.Buffer
	enc := yaml.NewEncoder(&meta)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("frontmatter: encode: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("frontmatter: encode: %w", err)
	}

	var buf strings.Builder
	buf.WriteString(fence + "\n")
	buf.WriteString(strings.TrimRight(meta.String(), "\n"))
	buf.WriteString("\n" + fence + "\n\n")
	buf.WriteString(body)
	return buf.String(), nil
}

// trimBody drops the blank line Encode places after the closing fence.
func trimBody(body string) string {
	return strings.TrimPrefix(body, "\n")
}

func normalizeNewlines(content string) string {
	return strings.ReplaceAll(content, "\r\n", "\n")
}
