package intent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/returnagent/extract"
	"github.com/tbxark/returnagent/structured"
)

const (
	classifyIntentToolName        = "classify_intent"
	classifyIntentToolDescription = "Classify a customer message for an order-return assistant: exit, return, order_number or unclear."
)

// DefaultClassifySystemPromptTemplate may contain a single "%s" placeholder for the tool name.
const DefaultClassifySystemPromptTemplate = `You are the intent classifier of an order-return assistant.

Read the customer's latest message and choose exactly one intent:
- exit: the customer wants to end the conversation (e.g. "no thanks", "bye", "that's all", "I'm done").
- return: the customer wants to return an item or asks about a return.
- order_number: the customer only provides an order number.
- unclear: anything else.

If the message contains an order number (a run of at least six digits), copy it verbatim into order_number.
Never invent an order number.

Call the '%s' tool with the result.`

type classifyIntentInput struct {
	Intent      Intent `json:"intent" jsonschema:"required,enum=exit,enum=return,enum=order_number,enum=unclear,description=The customer's intent"`
	OrderNumber string `json:"order_number,omitempty" jsonschema:"description=Order number copied from the message, digits only"`
}

type PromptBuilder func(systemPrompt string) func(ctx context.Context, text string) ([]*schema.Message, error)

type recognizerOptions struct {
	systemPromptTemplate string
	promptBuilder        PromptBuilder
}

type RecognizerOption func(*recognizerOptions)

func WithSystemPromptTemplate(systemPromptTemplate string) RecognizerOption {
	return func(o *recognizerOptions) {
		o.systemPromptTemplate = systemPromptTemplate
	}
}

func WithPromptBuilder(promptBuilder PromptBuilder) RecognizerOption {
	return func(o *recognizerOptions) {
		o.promptBuilder = promptBuilder
	}
}

func defaultPromptBuilder(systemPrompt string) func(ctx context.Context, text string) ([]*schema.Message, error) {
	return func(ctx context.Context, text string) ([]*schema.Message, error) {
		return []*schema.Message{
			schema.SystemMessage(systemPrompt),
			schema.UserMessage(text),
		}, nil
	}
}

type ToolBasedRecognizer struct {
	chain *structured.Chain[string, classifyIntentInput]
}

func NewToolBasedRecognizer(chatModel model.ToolCallingChatModel, opts ...RecognizerOption) (*ToolBasedRecognizer, error) {
	options := recognizerOptions{
		systemPromptTemplate: DefaultClassifySystemPromptTemplate,
		promptBuilder:        defaultPromptBuilder,
	}
	for _, o := range opts {
		if o != nil {
			o(&options)
		}
	}
	chain, err := structured.NewChain[string, classifyIntentInput](
		chatModel,
		options.promptBuilder(fmt.Sprintf(options.systemPromptTemplate, classifyIntentToolName)),
		classifyIntentToolName,
		classifyIntentToolDescription,
	)
	if err != nil {
		return nil, err
	}
	return &ToolBasedRecognizer{chain: chain}, nil
}

func (p *ToolBasedRecognizer) Recognize(ctx context.Context, text string) (*Classification, error) {
	result, err := p.chain.Invoke(ctx, text)
	if err != nil {
		return nil, err
	}
	if result == nil || result.Intent == "" {
		return nil, fmt.Errorf("empty intent returned by %s", classifyIntentToolName)
	}
	switch result.Intent {
	case Exit, Return, OrderNumber, Unclear:
	default:
		return nil, fmt.Errorf("unknown intent %q returned by %s", result.Intent, classifyIntentToolName)
	}
	// The order number must literally occur in the message; the model's copy is not trusted.
	order := extract.Order(text)
	intent := result.Intent
	if intent == OrderNumber && order == "" {
		intent = Unclear
	}
	return &Classification{Intent: intent, OrderNumber: order}, nil
}
