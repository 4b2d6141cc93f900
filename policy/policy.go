// Package policy supplies the return-policy text the eligibility explanation is
// grounded on.
package policy

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/tbxark/returnagent/extract"
	"github.com/tbxark/returnagent/types"
)

const DefaultMaxChars = 2000

// Fetcher returns the policy relevant to query. query carries context such as
// the delivery date; implementations are free to ignore it.
type Fetcher interface {
	Fetch(ctx context.Context, query string) (*types.PolicyDocument, error)
}

// FileFetcher reads the policy from a markdown file on every call, so edits to
// the file are picked up without a restart.
type FileFetcher struct {
	Path              string
	MaxChars          int
	DefaultWindowDays int
}

func NewFileFetcher(path string) *FileFetcher {
	return &FileFetcher{
		Path:              path,
		MaxChars:          DefaultMaxChars,
		DefaultWindowDays: types.DefaultReturnWindowDays,
	}
}

func (f *FileFetcher) Fetch(ctx context.Context, query string) (*types.PolicyDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Path == "" {
		return nil, fmt.Errorf("policy path is empty")
	}
	raw, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", f.Path, err)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return nil, fmt.Errorf("policy %s is empty", f.Path)
	}
	def := f.DefaultWindowDays
	if def <= 0 {
		def = types.DefaultReturnWindowDays
	}
	return &types.PolicyDocument{
		// the window is read from the full text so truncation cannot hide it
		ReturnWindowDays: extract.WindowDays(text, def),
		RawText:          truncate(text, f.MaxChars),
		Source:           f.Path,
	}, nil
}

// StaticFetcher always returns a copy of Document.
type StaticFetcher struct {
	Document types.PolicyDocument
}

func (f StaticFetcher) Fetch(ctx context.Context, query string) (*types.PolicyDocument, error) {
	doc := f.Document
	return &doc, nil
}

func truncate(s string, max int) string {
	if max <= 0 {
		max = DefaultMaxChars
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	var n int
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}
