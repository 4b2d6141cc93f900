package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/returnagent/policy"
	"github.com/tbxark/returnagent/types"
)

// scriptedModel replies with its queued messages in order and records every
// input it was given.
type scriptedModel struct {
	replies []*schema.Message
	inputs  [][]*schema.Message
	tools   []*schema.ToolInfo
}

func (m *scriptedModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.inputs = append(m.inputs, input)
	if len(m.replies) == 0 {
		return nil, errors.New("no scripted reply left")
	}
	reply := m.replies[0]
	m.replies = m.replies[1:]
	return reply, nil
}

func (m *scriptedModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (m *scriptedModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	m.tools = tools
	return m, nil
}

func callTool(id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       id,
			Type:     "function",
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func TestToolAgentCallsOrderAndPolicyTools(t *testing.T) {
	ctx := context.Background()
	m := &scriptedModel{replies: []*schema.Message{
		callTool("call_1", "lookup_order", `{"order_number":"9345018724"}`),
		callTool("call_2", policy.ToolName, `{"query":"delivered 2024-01-01"}`),
		schema.AssistantMessage("Your desk lamp can still be returned.", nil),
	}}
	searcher := &fakeSearcher{orders: map[string]string{"9345018724": lampOrder}}
	fetcher := &fakeFetcher{doc: &types.PolicyDocument{ReturnWindowDays: 30, RawText: "Items can be returned within 30 days.", Source: "policy.md"}}

	a, err := NewToolAgent(ctx, m, searcher, fetcher)
	if err != nil {
		t.Fatalf("new tool agent: %v", err)
	}
	runner := adk.NewRunner(ctx, adk.RunnerConfig{Agent: a})
	iter := runner.Run(ctx, []adk.Message{schema.UserMessage("Can I return order 9345018724?")},
		WithToday(date(2024, 1, 20)))

	var last string
	for {
		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			t.Fatalf("event error: %v", event.Err)
		}
		if event.Output == nil || event.Output.MessageOutput == nil {
			continue
		}
		msg, err := event.Output.MessageOutput.GetMessage()
		if err != nil {
			t.Fatalf("get message: %v", err)
		}
		last = msg.Content
	}
	if last != "Your desk lamp can still be returned." {
		t.Fatalf("final answer = %q", last)
	}
	if len(m.tools) != 2 {
		t.Errorf("model saw %d tools, want 2", len(m.tools))
	}
	if len(searcher.queries) != 1 || searcher.queries[0] != "9345018724" {
		t.Errorf("searcher queries = %v", searcher.queries)
	}
	if len(fetcher.queries) != 1 {
		t.Errorf("fetcher queries = %v", fetcher.queries)
	}

	if len(m.inputs) != 3 {
		t.Fatalf("model called %d times, want 3", len(m.inputs))
	}
	final := m.inputs[2]
	if !strings.Contains(final[0].Content, "2024-01-20") {
		t.Errorf("system prompt missing today: %q", final[0].Content)
	}
	var toolResults []string
	for _, msg := range final {
		if msg.Role == schema.Tool {
			toolResults = append(toolResults, msg.Content)
		}
	}
	if len(toolResults) != 2 || !strings.Contains(toolResults[0], "Desk lamp") || !strings.Contains(toolResults[1], "30") {
		t.Errorf("tool results = %v", toolResults)
	}
}

func TestNewToolAgentRequiresModel(t *testing.T) {
	if _, err := NewToolAgent(context.Background(), nil, &fakeSearcher{}, &fakeFetcher{}); err == nil {
		t.Fatalf("expected error for nil model")
	}
}
