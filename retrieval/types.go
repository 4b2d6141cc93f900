// Package retrieval resolves order numbers to order records. The controller
// sees it only through Searcher; the document stores behind it implement the
// eino retriever interface so any eino retriever can be swapped in.
package retrieval

import (
	"context"

	"github.com/tbxark/returnagent/types"
)

const (
	MetaSource      = "source"
	MetaOrderNumber = "order_number"
)

// Searcher maps a query to ranked candidates. An empty result means "not
// found" and is never reported as an error.
type Searcher interface {
	Search(ctx context.Context, query string) ([]types.Candidate, error)
}
