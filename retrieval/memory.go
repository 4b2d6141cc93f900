package retrieval

import (
	"context"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/cloudwego/eino/components/retriever"
	"github.com/cloudwego/eino/schema"
)

const defaultTopK = 5

var _ retriever.Retriever = (*MemoryRetriever)(nil)

// MemoryRetriever ranks in-memory documents by lexical token overlap.
type MemoryRetriever struct {
	mu   sync.RWMutex
	docs []*schema.Document
}

func NewMemoryRetriever(docs ...*schema.Document) *MemoryRetriever {
	r := &MemoryRetriever{}
	r.Add(docs...)
	return r
}

func (r *MemoryRetriever) Add(docs ...*schema.Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range docs {
		if d != nil {
			r.docs = append(r.docs, d)
		}
	}
}

func (r *MemoryRetriever) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

func (r *MemoryRetriever) Retrieve(ctx context.Context, query string, opts ...retriever.Option) ([]*schema.Document, error) {
	options := retriever.GetCommonOptions(&retriever.Options{TopK: intPtr(defaultTopK)}, opts...)
	topK := defaultTopK
	if options.TopK != nil && *options.TopK > 0 {
		topK = *options.TopK
	}

	terms := tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	type scored struct {
		doc   *schema.Document
		score float64
		index int
	}
	hits := make([]scored, 0, len(r.docs))
	for i, d := range r.docs {
		if score := overlapScore(terms, d.Content); score > 0 {
			hits = append(hits, scored{doc: d, score: score, index: i})
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].index < hits[j].index
	})
	if len(hits) > topK {
		hits = hits[:topK]
	}
	out := make([]*schema.Document, 0, len(hits))
	for _, h := range hits {
		doc := &schema.Document{
			ID:       h.doc.ID,
			Content:  h.doc.Content,
			MetaData: copyMeta(h.doc.MetaData),
		}
		out = append(out, doc.WithScore(h.score))
	}
	return out, nil
}

func overlapScore(terms []string, content string) float64 {
	tokens := make(map[string]struct{})
	for _, t := range tokenize(content) {
		tokens[t] = struct{}{}
	}
	var matched int
	for _, t := range terms {
		if _, ok := tokens[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func copyMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	return out
}

func intPtr(v int) *int {
	return &v
}
