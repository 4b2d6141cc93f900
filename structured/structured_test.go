package structured

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

type fakeModel struct {
	reply *schema.Message
	err   error
	opts  []model.Option
	calls int
}

func (m *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.calls++
	m.opts = opts
	return m.reply, m.err
}

func (m *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (m *fakeModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

type echoInput struct {
	Text string
}

type echoOutput struct {
	Label string `json:"label" jsonschema:"required,description=Label"`
}

func buildPrompt(ctx context.Context, in echoInput) ([]*schema.Message, error) {
	return []*schema.Message{schema.UserMessage(in.Text)}, nil
}

func toolCall(name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{{
			ID:       "call_1",
			Function: schema.FunctionCall{Name: name, Arguments: args},
		}},
	}
}

func TestChainInvokeDecodesToolArguments(t *testing.T) {
	m := &fakeModel{reply: toolCall("label_text", `{"label":"return"}`)}
	chain, err := NewChain[echoInput, echoOutput](m, buildPrompt, "label_text", "label the text")
	if err != nil {
		t.Fatalf("new chain: %v", err)
	}
	out, err := chain.Invoke(context.Background(), echoInput{Text: "hi"})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out.Label != "return" {
		t.Errorf("label = %q", out.Label)
	}
	if len(m.opts) != 2 {
		t.Errorf("expected tools and tool choice options, got %d", len(m.opts))
	}
	if chain.ToolInfo.Name != "label_text" {
		t.Errorf("tool name = %q", chain.ToolInfo.Name)
	}
}

func TestChainInvokeErrors(t *testing.T) {
	tests := []struct {
		name  string
		model *fakeModel
	}{
		{"model error", &fakeModel{err: errors.New("boom")}},
		{"no tool call", &fakeModel{reply: schema.AssistantMessage("plain text", nil)}},
		{"other tool", &fakeModel{reply: toolCall("something_else", `{}`)}},
		{"bad json", &fakeModel{reply: toolCall("label_text", `{"label":`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain, err := NewChain[echoInput, echoOutput](tt.model, buildPrompt, "label_text", "label the text")
			if err != nil {
				t.Fatalf("new chain: %v", err)
			}
			if _, err := chain.Invoke(context.Background(), echoInput{Text: "hi"}); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNewChainRequiresModel(t *testing.T) {
	if _, err := NewChain[echoInput, echoOutput](nil, buildPrompt, "label_text", "d"); err == nil {
		t.Fatalf("expected error for nil model")
	}
}
