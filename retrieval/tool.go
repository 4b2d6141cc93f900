package retrieval

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/tbxark/returnagent/extract"
)

const (
	ToolName        = "lookup_order"
	toolDescription = "Looks up an order record by order number. Returns the matching order text, or nothing when the order is unknown."
)

type lookupOrderInput struct {
	OrderNumber string `json:"order_number" jsonschema:"required,description=The customer's order number"`
}

type lookupOrderOutput struct {
	Found   bool     `json:"found"`
	Records []string `json:"records,omitempty"`
}

// NewTool exposes searcher as an invokable eino tool. Only records labelled
// with the requested number are reported as found.
func NewTool(searcher Searcher) (tool.InvokableTool, error) {
	return utils.InferTool(
		ToolName,
		toolDescription,
		func(ctx context.Context, input *lookupOrderInput) (*lookupOrderOutput, error) {
			number := ""
			if input != nil {
				number = extract.Order(strings.TrimSpace(input.OrderNumber))
			}
			if number == "" {
				return &lookupOrderOutput{}, nil
			}
			candidates, err := searcher.Search(ctx, number)
			if err != nil {
				return nil, err
			}
			out := &lookupOrderOutput{}
			for _, c := range candidates {
				if embedded := extract.EmbeddedOrderNumber(c.Text); embedded == number {
					out.Records = append(out.Records, c.Text)
				}
			}
			out.Found = len(out.Records) > 0
			return out, nil
		},
	)
}
