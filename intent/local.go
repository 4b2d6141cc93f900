package intent

import (
	"context"
	"strings"

	"github.com/tbxark/returnagent/extract"
)

type LocalRecognizer struct {
	// ExitPhrases end the conversation when contained anywhere in the utterance.
	ExitPhrases []string
	// ExitExact end the conversation only on an exact match.
	ExitExact      []string
	ReturnKeywords []string
}

func NewLocalRecognizer() *LocalRecognizer {
	return &LocalRecognizer{
		ExitPhrases: []string{
			"no", "nothing", "exit", "quit", "bye", "goodbye", "that's all",
			"thank you", "thanks", "that's it", "i'm done", "im done", "end", "stop",
		},
		ExitExact:      []string{"no", "nope", "exit", "quit", "bye"},
		ReturnKeywords: []string{"return"},
	}
}

func (p *LocalRecognizer) Recognize(ctx context.Context, text string) (*Classification, error) {
	normalized := strings.ToLower(strings.TrimSpace(text))
	result := &Classification{
		Intent:      Unclear,
		OrderNumber: extract.Order(normalized),
	}
	switch {
	case p.IsExit(normalized):
		result.Intent = Exit
	case p.mentionsReturn(normalized):
		result.Intent = Return
	case result.OrderNumber != "":
		result.Intent = OrderNumber
	}
	return result, nil
}

// IsExit reports whether text matches the exit vocabulary.
func (p *LocalRecognizer) IsExit(text string) bool {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, phrase := range p.ExitPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	for _, phrase := range p.ExitExact {
		if normalized == phrase {
			return true
		}
	}
	return false
}

func (p *LocalRecognizer) mentionsReturn(normalized string) bool {
	for _, keyword := range p.ReturnKeywords {
		if strings.Contains(normalized, keyword) {
			return true
		}
	}
	return false
}

// LocalFirstRecognizer keeps the keyword vocabulary authoritative: exit,
// "return" and order numbers are decided locally, and only utterances the
// vocabulary leaves unclear are passed to fallback.
type LocalFirstRecognizer struct {
	local    *LocalRecognizer
	fallback Recognizer
}

func NewLocalFirstRecognizer(local *LocalRecognizer, fallback Recognizer) *LocalFirstRecognizer {
	if local == nil {
		local = NewLocalRecognizer()
	}
	return &LocalFirstRecognizer{local: local, fallback: fallback}
}

func (p *LocalFirstRecognizer) Recognize(ctx context.Context, text string) (*Classification, error) {
	result, err := p.local.Recognize(ctx, text)
	if err != nil || result.Intent != Unclear || p.fallback == nil {
		return result, err
	}
	refined, err := p.fallback.Recognize(ctx, text)
	if err != nil || refined == nil {
		return result, nil
	}
	return refined, nil
}
