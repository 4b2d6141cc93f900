package policy

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

const (
	ToolName        = "fetch_return_policy"
	toolDescription = "Fetches the store return policy, including the return window in days."
)

type fetchPolicyInput struct {
	Query string `json:"query,omitempty" jsonschema:"description=Optional context such as the order delivery date"`
}

type fetchPolicyOutput struct {
	ReturnWindowDays int    `json:"return_window_days"`
	Policy           string `json:"policy"`
	Source           string `json:"source,omitempty"`
}

// NewTool exposes fetcher as an invokable eino tool.
func NewTool(fetcher Fetcher) (tool.InvokableTool, error) {
	return utils.InferTool(
		ToolName,
		toolDescription,
		func(ctx context.Context, input *fetchPolicyInput) (*fetchPolicyOutput, error) {
			var query string
			if input != nil {
				query = input.Query
			}
			doc, err := fetcher.Fetch(ctx, query)
			if err != nil {
				return nil, err
			}
			return &fetchPolicyOutput{
				ReturnWindowDays: doc.ReturnWindowDays,
				Policy:           doc.RawText,
				Source:           doc.Source,
			}, nil
		},
	)
}
