package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/returnagent/extract"
	"github.com/tbxark/returnagent/types"
)

const (
	defaultVariationTopK = 5
	defaultResultLimit   = 1
)

var queryVariations = []string{
	"%s",
	"Order number: %s",
	"Order %s",
	"return order %s",
	"Customer order %s",
}

// EinoSearcher runs several phrasings of the query against an eino retriever
// and returns the first document labelled with exactly the queried order
// number, or the best distinct hits.
type EinoSearcher struct {
	retriever retriever.Retriever
	topK      int
	limit     int
}

type SearcherOption func(*EinoSearcher)

// WithVariationTopK sets how many documents each query variation asks for.
func WithVariationTopK(k int) SearcherOption {
	return func(s *EinoSearcher) {
		if k > 0 {
			s.topK = k
		}
	}
}

// WithResultLimit caps the candidates returned when no exact hit exists.
func WithResultLimit(n int) SearcherOption {
	return func(s *EinoSearcher) {
		if n > 0 {
			s.limit = n
		}
	}
}

func NewEinoSearcher(r retriever.Retriever, opts ...SearcherOption) *EinoSearcher {
	s := &EinoSearcher{
		retriever: r,
		topK:      defaultVariationTopK,
		limit:     defaultResultLimit,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *EinoSearcher) Search(ctx context.Context, query string) ([]types.Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	seen := make(map[string]struct{})
	var collected []*schema.Document
	var failures int
	var lastErr error
	for _, tpl := range queryVariations {
		variation := fmt.Sprintf(tpl, query)
		docs, err := s.retriever.Retrieve(ctx, variation, retriever.WithTopK(s.topK))
		if err != nil {
			failures++
			lastErr = err
			slog.Warn("order retrieval variation failed", "query", variation, "err", err)
			continue
		}
		slog.Debug("order retrieval variation", "query", variation, "hits", len(docs))
		for _, doc := range docs {
			if doc == nil {
				continue
			}
			if docOrderNumber(doc) == query {
				return []types.Candidate{toCandidate(doc)}, nil
			}
			if _, ok := seen[doc.Content]; ok {
				continue
			}
			seen[doc.Content] = struct{}{}
			collected = append(collected, doc)
		}
	}
	if failures == len(queryVariations) {
		return nil, fmt.Errorf("retrieve order %s: %w", query, lastErr)
	}
	if len(collected) > s.limit {
		collected = collected[:s.limit]
	}
	out := make([]types.Candidate, 0, len(collected))
	for _, doc := range collected {
		out = append(out, toCandidate(doc))
	}
	return out, nil
}

// docOrderNumber prefers the number tagged at ingest time and falls back to
// the labelled number in the content.
func docOrderNumber(doc *schema.Document) string {
	if n, ok := doc.MetaData[MetaOrderNumber].(string); ok && n != "" {
		return n
	}
	return extract.EmbeddedOrderNumber(doc.Content)
}

func toCandidate(doc *schema.Document) types.Candidate {
	source, _ := doc.MetaData[MetaSource].(string)
	return types.Candidate{
		Text:   doc.Content,
		Source: source,
		Score:  doc.Score(),
	}
}
