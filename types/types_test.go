package types

import (
	"strings"
	"testing"
	"time"
)

func TestSessionCloneIsDeep(t *testing.T) {
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	days := 19
	s := NewSession("s1")
	s.OrderRecord = &OrderRecord{OrderNumber: "9345018724", DeliveryDate: &d}
	s.Verdict = &EligibilityVerdict{Status: StatusEligible, DaysSinceDelivery: &days}
	s.Policy = DefaultPolicy()

	c := s.Clone()
	*c.OrderRecord.DeliveryDate = d.AddDate(0, 0, 5)
	*c.Verdict.DaysSinceDelivery = 99
	c.Policy.ReturnWindowDays = 1

	if !s.OrderRecord.DeliveryDate.Equal(d) {
		t.Errorf("clone shares delivery date")
	}
	if *s.Verdict.DaysSinceDelivery != 19 {
		t.Errorf("clone shares day count")
	}
	if s.Policy.ReturnWindowDays != DefaultReturnWindowDays {
		t.Errorf("clone shares policy")
	}
}

func TestNewSessionStartsAtGreet(t *testing.T) {
	s := NewSession("abc")
	if s.State != StateGreet || s.SlotRetryCount != 0 || s.PendingOrderNumber != "" || s.ShouldTerminate {
		t.Fatalf("unexpected initial session: %+v", s)
	}
}

func TestFormatExplanationRequest(t *testing.T) {
	days := 19
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	out, err := FormatExplanationRequest(&ExplanationRequest{
		OrderInfo:   "Order number: 9345018724",
		PolicyText:  "30-day returns",
		CurrentDate: time.Date(2024, 1, 20, 10, 0, 0, 0, time.UTC),
		Verdict: &EligibilityVerdict{
			Status:            StatusEligible,
			DaysSinceDelivery: &days,
			WindowDays:        30,
			WindowEndsOn:      &end,
		},
	})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	for _, want := range []string{"2024-01-20", "Order number: 9345018724", "30-day returns", "ELIGIBLE", "19", "2024-01-31"} {
		if !strings.Contains(out, want) {
			t.Errorf("prompt missing %q:\n%s", want, out)
		}
	}
}

func TestFormatExplanationRequestDefaults(t *testing.T) {
	out, err := FormatExplanationRequest(&ExplanationRequest{CurrentDate: time.Now()})
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	if !strings.Contains(out, "No order information available.") || !strings.Contains(out, "Standard return policy applies.") {
		t.Errorf("defaults missing:\n%s", out)
	}
	if _, err := FormatExplanationRequest(nil); err == nil {
		t.Errorf("expected error for nil request")
	}
}
