package dialogue

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbxark/returnagent/types"
)

// LocalGenerator words the verdict without a model.
type LocalGenerator struct{}

func (LocalGenerator) Explain(ctx context.Context, req *types.ExplanationRequest) (string, error) {
	if req == nil || req.Verdict == nil {
		return "", fmt.Errorf("explanation request has no verdict")
	}
	v := req.Verdict
	if v.Status != types.StatusUnknown && v.DaysSinceDelivery == nil {
		return "", fmt.Errorf("verdict %s has no day count", v.Status)
	}
	subject := "Your order"
	if req.OrderNumber != "" {
		subject = fmt.Sprintf("Your order %s", req.OrderNumber)
	}

	var sb strings.Builder
	switch v.Status {
	case types.StatusEligible:
		if v.FutureDelivery {
			fmt.Fprintf(&sb, "%s shows a delivery date after today, so it is still within the %d-day return window.", subject, v.WindowDays)
		} else {
			fmt.Fprintf(&sb, "%s was delivered %s ago, which is within the %d-day return window.", subject, pluralDays(*v.DaysSinceDelivery), v.WindowDays)
		}
		if v.WindowEndsOn != nil {
			fmt.Fprintf(&sb, " You can start a return until %s.", v.WindowEndsOn.Format(types.DateLayout))
		}
		sb.WriteString(" To initiate it, go to your orders, select the item and choose \"Return or replace items\".")
	case types.StatusNotEligible:
		fmt.Fprintf(&sb, "%s was delivered %s ago, which is outside the %d-day return window", subject, pluralDays(*v.DaysSinceDelivery), v.WindowDays)
		if v.WindowEndsOn != nil {
			fmt.Fprintf(&sb, " that ended on %s", v.WindowEndsOn.Format(types.DateLayout))
		}
		sb.WriteString(", so it is no longer eligible for return.")
	default:
		fmt.Fprintf(&sb, "I couldn't find a delivery date for %s, so I can't confirm whether it is within the %d-day return window. Please contact customer support for help.", strings.ToLower(subject[:1])+subject[1:], v.WindowDays)
	}
	return sb.String(), nil
}

func pluralDays(n int) string {
	if n == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", n)
}

// FailbackGenerator returns the first successful explanation.
type FailbackGenerator struct {
	generators []Generator
}

func NewFailbackGenerator(generators ...Generator) *FailbackGenerator {
	return &FailbackGenerator{generators: generators}
}

func (g *FailbackGenerator) Explain(ctx context.Context, req *types.ExplanationRequest) (string, error) {
	lastErr := fmt.Errorf("no generators configured")
	for _, generator := range g.generators {
		text, err := generator.Explain(ctx, req)
		if err == nil {
			return text, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("all dialogue generators failed: %w", lastErr)
}
