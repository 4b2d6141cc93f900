package testcases

import (
	"testing"
	"time"

	"github.com/tbxark/returnagent/types"
)

func TestEligibleReturn(t *testing.T) {
	t.Parallel()
	flow := NewTestFlow(t, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	c := NewConversation(t, flow)

	c.Say("Hi, I'd like to return a lamp I bought")
	if c.Session.State != types.StateAskOrderNumber {
		t.Fatalf("expected to be asked for the order number, at %s", c.Session.State)
	}

	resp := c.Say("Sure, it's 9345018724")
	if c.Session.Verdict == nil || c.Session.Verdict.Status != types.StatusEligible {
		t.Fatalf("verdict = %+v", c.Session.Verdict)
	}
	if *c.Session.Verdict.DaysSinceDelivery != 19 {
		t.Errorf("days = %d, want 19", *c.Session.Verdict.DaysSinceDelivery)
	}
	if resp.Message == "" {
		t.Errorf("empty explanation")
	}

	resp = c.Say("No, that's all. Thanks!")
	if !resp.Completed {
		t.Errorf("conversation did not end")
	}
}

func TestNotEligibleReturn(t *testing.T) {
	t.Parallel()
	flow := NewTestFlow(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	c := NewConversation(t, flow)

	c.Say("Can you check order 9345018724 for me?")
	if c.Session.Verdict == nil || c.Session.Verdict.Status != types.StatusNotEligible {
		t.Fatalf("verdict = %+v", c.Session.Verdict)
	}
}
