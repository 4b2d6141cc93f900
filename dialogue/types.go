// Package dialogue phrases eligibility verdicts for the customer. Generators
// only choose wording: the verdict they receive is final.
package dialogue

import (
	"context"

	"github.com/tbxark/returnagent/types"
)

type Generator interface {
	Explain(ctx context.Context, req *types.ExplanationRequest) (string, error)
}
