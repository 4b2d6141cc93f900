package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/returnagent/extract"
)

var (
	_ document.Loader      = (*MarkdownLoader)(nil)
	_ document.Transformer = (*OrderSplitter)(nil)
)

// MarkdownLoader loads a markdown file, or every .md file of a directory, as
// one document per file.
type MarkdownLoader struct{}

func (MarkdownLoader) Load(ctx context.Context, src document.Source, opts ...document.LoaderOption) ([]*schema.Document, error) {
	info, err := os.Stat(src.URI)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", src.URI, err)
	}
	paths := []string{src.URI}
	if info.IsDir() {
		entries, err := os.ReadDir(src.URI)
		if err != nil {
			return nil, fmt.Errorf("read dir %s: %w", src.URI, err)
		}
		paths = paths[:0]
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".md") {
				continue
			}
			paths = append(paths, filepath.Join(src.URI, e.Name()))
		}
		sort.Strings(paths)
	}

	docs := make([]*schema.Document, 0, len(paths))
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		name := filepath.Base(p)
		docs = append(docs, &schema.Document{
			ID:       name,
			Content:  string(content),
			MetaData: map[string]any{MetaSource: name},
		})
	}
	return docs, nil
}

var orderBoundaryRe = regexp.MustCompile(`(?i)order\s+number\s*:`)

// OrderSplitter cuts documents at every "Order number:" label so that each
// chunk describes a single order.
type OrderSplitter struct{}

func (OrderSplitter) Transform(ctx context.Context, src []*schema.Document, opts ...document.TransformerOption) ([]*schema.Document, error) {
	var out []*schema.Document
	for _, doc := range src {
		if doc == nil {
			continue
		}
		source, _ := doc.MetaData[MetaSource].(string)
		if source == "" {
			source = doc.ID
		}
		for i, chunk := range splitByOrder(doc.Content) {
			meta := copyMeta(doc.MetaData)
			meta[MetaSource] = source
			if number := extract.EmbeddedOrderNumber(chunk); number != "" {
				meta[MetaOrderNumber] = number
			}
			out = append(out, &schema.Document{
				ID:       doc.ID + "#" + strconv.Itoa(i),
				Content:  chunk,
				MetaData: meta,
			})
		}
	}
	return out, nil
}

func splitByOrder(text string) []string {
	idx := orderBoundaryRe.FindAllStringIndex(text, -1)
	starts := make([]int, 0, len(idx)+1)
	if len(idx) == 0 || idx[0][0] > 0 {
		starts = append(starts, 0)
	}
	for _, loc := range idx {
		starts = append(starts, loc[0])
	}
	var chunks []string
	for i, start := range starts {
		end := len(text)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if chunk := strings.TrimSpace(text[start:end]); chunk != "" {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}
