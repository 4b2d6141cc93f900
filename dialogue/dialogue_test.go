package dialogue

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/returnagent/types"
)

type fakeModel struct {
	reply *schema.Message
	err   error
	input []*schema.Message
}

func (m *fakeModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	m.input = input
	return m.reply, m.err
}

func (m *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func verdict(status types.Status, days int) *types.EligibilityVerdict {
	ends := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	return &types.EligibilityVerdict{Status: status, DaysSinceDelivery: &days, WindowDays: 30, WindowEndsOn: &ends}
}

func request(v *types.EligibilityVerdict) *types.ExplanationRequest {
	return &types.ExplanationRequest{
		OrderInfo:   "Order number: 9345018724\nDelivery date: 2024-01-01",
		PolicyText:  "Items can be returned within 30 days.",
		CurrentDate: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		Verdict:     v,
		OrderNumber: "9345018724",
	}
}

func TestToolBasedGeneratorBuildsPrompt(t *testing.T) {
	m := &fakeModel{reply: schema.AssistantMessage("  You can return it until 2024-01-31.  ", nil)}
	g := NewToolBasedGenerator(m, WithLang("French"))
	text, err := g.Explain(context.Background(), request(verdict(types.StatusEligible, 19)))
	if err != nil {
		t.Fatalf("explain: %v", err)
	}
	if text != "You can return it until 2024-01-31." {
		t.Errorf("text = %q", text)
	}
	if len(m.input) != 2 {
		t.Fatalf("expected system and user messages, got %d", len(m.input))
	}
	if !strings.Contains(m.input[0].Content, "Reply in French.") {
		t.Errorf("system prompt not localized: %q", m.input[0].Content)
	}
	user := m.input[1].Content
	for _, want := range []string{"2024-01-20", "9345018724", "ELIGIBLE", "| Days since delivery"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q:\n%s", want, user)
		}
	}
}

func TestToolBasedGeneratorSystemPromptOverride(t *testing.T) {
	m := &fakeModel{reply: schema.AssistantMessage("ok", nil)}
	g := NewToolBasedGenerator(m, WithSystemPrompt("custom"))
	if _, err := g.Explain(context.Background(), request(verdict(types.StatusEligible, 1))); err != nil {
		t.Fatalf("explain: %v", err)
	}
	if m.input[0].Content != "custom" {
		t.Errorf("system prompt = %q", m.input[0].Content)
	}
}

func TestToolBasedGeneratorErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := NewToolBasedGenerator(&fakeModel{err: errors.New("timeout")}).Explain(ctx, request(verdict(types.StatusEligible, 1))); err == nil {
		t.Errorf("expected model error")
	}
	if _, err := NewToolBasedGenerator(&fakeModel{reply: schema.AssistantMessage(" ", nil)}).Explain(ctx, request(verdict(types.StatusEligible, 1))); err == nil {
		t.Errorf("expected error for empty reply")
	}
	if _, err := NewToolBasedGenerator(nil).Explain(ctx, request(nil)); err == nil {
		t.Errorf("expected error without model")
	}
}

func TestLocalGenerator(t *testing.T) {
	ctx := context.Background()
	unknown := &types.EligibilityVerdict{Status: types.StatusUnknown, WindowDays: 30}
	tests := []struct {
		name string
		v    *types.EligibilityVerdict
		want []string
	}{
		{"eligible", verdict(types.StatusEligible, 19), []string{"19 days ago", "within the 30-day", "2024-01-31"}},
		{"not eligible", verdict(types.StatusNotEligible, 60), []string{"60 days ago", "outside the 30-day", "no longer eligible"}},
		{"unknown", unknown, []string{"couldn't find a delivery date", "your order 9345018724"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := LocalGenerator{}.Explain(ctx, request(tt.v))
			if err != nil {
				t.Fatalf("explain: %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(text, want) {
					t.Errorf("%q missing %q", text, want)
				}
			}
		})
	}
	if _, err := (LocalGenerator{}).Explain(ctx, request(nil)); err == nil {
		t.Errorf("expected error without verdict")
	}
}

type staticGenerator struct {
	text string
	err  error
}

func (g staticGenerator) Explain(ctx context.Context, req *types.ExplanationRequest) (string, error) {
	return g.text, g.err
}

func TestFailbackGenerator(t *testing.T) {
	ctx := context.Background()
	g := NewFailbackGenerator(staticGenerator{err: errors.New("down")}, staticGenerator{text: "fallback"})
	text, err := g.Explain(ctx, request(nil))
	if err != nil || text != "fallback" {
		t.Fatalf("got %q, %v", text, err)
	}

	boom := errors.New("boom")
	if _, err := NewFailbackGenerator(staticGenerator{err: boom}).Explain(ctx, request(nil)); !errors.Is(err, boom) {
		t.Errorf("err = %v", err)
	}
	if _, err := NewFailbackGenerator().Explain(ctx, request(nil)); err == nil {
		t.Errorf("expected error with no generators")
	}
}
