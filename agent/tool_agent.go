package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/tbxark/returnagent/policy"
	"github.com/tbxark/returnagent/retrieval"
	"github.com/tbxark/returnagent/types"
)

// ToolAgentInstruction is the system prompt of the tool-calling assistant.
// "{today}" is filled from the run's session values.
const ToolAgentInstruction = `You are a store return assistant.
Today's date is {today}.

- Ask for the order number when the customer has not given one.
- Use lookup_order to find the order and fetch_return_policy to read the return policy.
- An order can be returned when the days since delivery do not exceed the return window.
- If the order has no delivery date, say that eligibility cannot be confirmed and suggest contacting support.
- Never invent orders or policy terms. Be concise.
`

const defaultToolAgentIterations = 8

// NewToolAgent builds a free-form eino agent that answers return questions by
// calling the order lookup and policy tools itself. Unlike Flow it has no
// fixed states; the model decides when to call each tool.
func NewToolAgent(
	ctx context.Context,
	chatModel model.ToolCallingChatModel,
	searcher retrieval.Searcher,
	policyFetcher policy.Fetcher,
) (*adk.ChatModelAgent, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("chat model is required")
	}
	lookup, err := retrieval.NewTool(searcher)
	if err != nil {
		return nil, fmt.Errorf("create order lookup tool: %w", err)
	}
	fetch, err := policy.NewTool(policyFetcher)
	if err != nil {
		return nil, fmt.Errorf("create policy tool: %w", err)
	}
	return adk.NewChatModelAgent(ctx, &adk.ChatModelAgentConfig{
		Name:        "ReturnToolAgent",
		Description: "Answers order return questions using order lookup and policy tools",
		Instruction: ToolAgentInstruction,
		Model:       chatModel,
		ToolsConfig: adk.ToolsConfig{
			ToolsNodeConfig: compose.ToolsNodeConfig{
				Tools: []tool.BaseTool{lookup, fetch},
			},
		},
		MaxIterations: defaultToolAgentIterations,
	})
}

// WithToday supplies the date the tool agent reasons against.
func WithToday(today time.Time) adk.AgentRunOption {
	return adk.WithSessionValues(map[string]any{"today": today.Format(types.DateLayout)})
}
