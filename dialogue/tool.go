package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/returnagent/types"
)

// DefaultExplainSystemPromptTemplate is the default system prompt template used by
// ToolBasedGenerator. The template may contain a single "%s" placeholder for the language.
const DefaultExplainSystemPromptTemplate = `You are a helpful store return assistant.

You receive the order info, the return policy, the current date and a table of eligibility facts.
- The eligibility facts are final. Never contradict the status, the day count or the window.
- If the order is ELIGIBLE, explain how to initiate the return and until when it is possible.
- If it is NOT_ELIGIBLE, explain why, citing the time window and the days since delivery.
- If it is UNKNOWN, explain that the delivery date could not be found and suggest contacting support.
- Be specific and concise. Do not ask follow-up questions.
- Reply in %s.
`

type ToolBasedGenerator struct {
	Lang                 string
	systemPrompt         string
	systemPromptTemplate string
	chatModel            model.BaseChatModel
}

type generatorOptions struct {
	lang                 string
	systemPrompt         string
	systemPromptTemplate string
}

type GeneratorOption func(*generatorOptions)

// WithLang sets the language used by the default system prompt template.
func WithLang(lang string) GeneratorOption {
	return func(o *generatorOptions) {
		o.lang = lang
	}
}

// WithSystemPrompt overrides the system prompt used by ToolBasedGenerator.
func WithSystemPrompt(systemPrompt string) GeneratorOption {
	return func(o *generatorOptions) {
		o.systemPrompt = systemPrompt
	}
}

// WithSystemPromptTemplate overrides the system prompt template used by ToolBasedGenerator.
// If the template contains "%s", it will be formatted with the language.
func WithSystemPromptTemplate(systemPromptTemplate string) GeneratorOption {
	return func(o *generatorOptions) {
		o.systemPromptTemplate = systemPromptTemplate
	}
}

func NewToolBasedGenerator(chatModel model.BaseChatModel, opts ...GeneratorOption) *ToolBasedGenerator {
	options := generatorOptions{
		lang:                 "English",
		systemPromptTemplate: DefaultExplainSystemPromptTemplate,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.lang == "" {
		options.lang = "English"
	}
	return &ToolBasedGenerator{
		Lang:                 options.lang,
		systemPrompt:         options.systemPrompt,
		systemPromptTemplate: options.systemPromptTemplate,
		chatModel:            chatModel,
	}
}

func (g *ToolBasedGenerator) Explain(ctx context.Context, req *types.ExplanationRequest) (string, error) {
	if g.chatModel == nil {
		return "", fmt.Errorf("chat model is not configured")
	}
	messages, err := g.buildPrompt(req)
	if err != nil {
		return "", fmt.Errorf("build explanation prompt: %w", err)
	}

	response, err := g.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("LLM call failed: %w", err)
	}
	if response == nil || strings.TrimSpace(response.Content) == "" {
		return "", fmt.Errorf("LLM returned an empty explanation")
	}
	return strings.TrimSpace(response.Content), nil
}

func (g *ToolBasedGenerator) buildPrompt(req *types.ExplanationRequest) ([]*schema.Message, error) {
	message, err := types.FormatExplanationRequest(req)
	if err != nil {
		return nil, fmt.Errorf("convert to prompt message failed: %w", err)
	}

	systemPrompt := g.systemPrompt
	if systemPrompt == "" {
		tpl := g.systemPromptTemplate
		if tpl == "" {
			tpl = DefaultExplainSystemPromptTemplate
		}
		if strings.Contains(tpl, "%s") {
			systemPrompt = fmt.Sprintf(tpl, g.Lang)
		} else {
			systemPrompt = tpl
		}
	}

	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(message),
	}, nil
}
