package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/returnagent/types"
)

func TestMemoryCacheExpiry(t *testing.T) {
	ctx := context.Background()
	now := date(2024, 1, 1)
	c := NewMemoryCache[int](time.Minute)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "a", 1)
	if v, ok, _ := c.Get(ctx, "a"); !ok || v != 1 {
		t.Fatalf("get = %d, %v", v, ok)
	}
	now = now.Add(2 * time.Minute)
	if ok, _ := c.Exists(ctx, "a"); ok {
		t.Fatalf("entry should have expired")
	}

	_ = c.Set(ctx, "b", 1)
	now = now.Add(2 * time.Minute)
	_ = c.Set(ctx, "c", 1)
	if _, ok := c.m["b"]; ok {
		t.Errorf("expired entry not swept on write")
	}

	forever := NewMemoryCache[int](0)
	_ = forever.Set(ctx, "a", 1)
	if ok, _ := forever.Exists(ctx, "a"); !ok {
		t.Fatalf("entry without ttl missing")
	}
}

func TestMemoryCacheKeepsRewrittenEntry(t *testing.T) {
	ctx := context.Background()
	now := date(2024, 1, 1)
	c := NewMemoryCache[int](time.Minute)
	c.now = func() time.Time { return now }

	_ = c.Set(ctx, "a", 1)
	now = now.Add(2 * time.Minute)
	_ = c.Set(ctx, "a", 2)
	if c.deleteExpired("a") {
		t.Fatalf("fresh entry deleted")
	}
	if v, ok, _ := c.Get(ctx, "a"); !ok || v != 2 {
		t.Fatalf("get = %d, %v", v, ok)
	}
}

func TestSessionStoreIsolatesCallers(t *testing.T) {
	store := NewMemorySessionStore(0)
	if _, err := store.Read(context.Background()); !errors.Is(err, ErrNoSessionKey) {
		t.Fatalf("err = %v, want ErrNoSessionKey", err)
	}

	ctx := WithSessionKey(context.Background(), "alice")
	if _, err := store.Read(ctx); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	s, err := store.ReadOrInit(ctx)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	if s.ID != "alice" || s.State != types.StateGreet {
		t.Fatalf("unexpected session %+v", s)
	}

	s.PendingOrderNumber = "123456"
	if err := store.Write(ctx, s); err != nil {
		t.Fatalf("write: %v", err)
	}
	s.PendingOrderNumber = "999999"
	got, _ := store.Read(ctx)
	if got.PendingOrderNumber != "123456" {
		t.Errorf("stored session shares memory with caller: %q", got.PendingOrderNumber)
	}

	other := WithSessionKey(context.Background(), "bob")
	if _, err := store.Read(other); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("sessions leak across keys: %v", err)
	}

	_ = store.Remove(ctx)
	if _, err := store.Read(ctx); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("session not removed: %v", err)
	}
}

func TestKeepSystemLastNTrimmer(t *testing.T) {
	history := []*schema.Message{
		schema.SystemMessage("sys"),
		schema.UserMessage("u1"),
		schema.AssistantMessage("a1", nil),
		nil,
		schema.UserMessage("u2"),
		schema.AssistantMessage("a2", nil),
	}
	got := KeepSystemLastNTrimmer{N: 2}.Trim(history)
	if len(got) != 3 || got[0].Content != "sys" || got[1].Content != "u2" || got[2].Content != "a2" {
		t.Fatalf("unexpected trim: %v", got)
	}
	if got := (KeepSystemLastNTrimmer{N: 0}).Trim(history); len(got) != 1 {
		t.Errorf("N=0 kept %d messages", len(got))
	}
	if got := (KeepSystemLastNTrimmer{N: 10}).Trim(history); len(got) != len(history) {
		t.Errorf("large N dropped messages")
	}
}

func TestHistoryStoreAppendTurn(t *testing.T) {
	ctx := WithSessionKey(context.Background(), "s1")
	h := NewMemoryHistoryStore(0, KeepSystemLastNTrimmer{N: 3})
	if _, err := h.AppendTurn(ctx, "", []string{"hi"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	hist, err := h.AppendTurn(ctx, "return", []string{"order number?"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(hist) != 3 || hist[0].Content != "hi" || hist[1].Role != schema.User {
		t.Fatalf("unexpected history: %v", hist)
	}
	hist, _ = h.AppendTurn(ctx, "9345018724", nil)
	if len(hist) != 3 || hist[0].Content != "return" {
		t.Fatalf("history not trimmed: %v", hist)
	}
	_ = h.Clear(ctx)
	if hist, _ := h.Load(ctx); len(hist) != 0 {
		t.Errorf("history not cleared")
	}
}

func newTestAgent(t *testing.T) (*Agent, *SessionStore, *HistoryStore) {
	t.Helper()
	h := newHarness(t, date(2024, 1, 20))
	sessions := NewMemorySessionStore(0)
	history := NewMemoryHistoryStore(0, nil)
	return NewAgent("returns", "order return assistant", h.flow, sessions, WithHistory(history)), sessions, history
}

func TestAgentTurnPersistsSession(t *testing.T) {
	a, sessions, history := newTestAgent(t)
	ctx := WithSessionKey(context.Background(), "s1")

	resp, err := a.Turn(ctx, "I want to return something")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if resp.Messages[0] != msgGreeting {
		t.Errorf("first message = %q", resp.Messages[0])
	}
	stored, err := sessions.Read(ctx)
	if err != nil || stored.State != types.StateAskOrderNumber {
		t.Fatalf("stored session = %+v, %v", stored, err)
	}

	if _, err := a.Turn(ctx, "9345018724"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	resp, err = a.Turn(ctx, "bye")
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if !resp.Completed {
		t.Fatalf("expected completion")
	}
	if _, err := sessions.Read(ctx); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("completed session kept: %v", err)
	}
	hist, err := history.Load(ctx)
	if err != nil || len(hist) != 0 {
		t.Errorf("completed transcript kept: %v, %v", hist, err)
	}
}

func TestAgentTurnKeepsTranscriptWhileActive(t *testing.T) {
	a, _, history := newTestAgent(t)
	ctx := WithSessionKey(context.Background(), "s3")

	if _, err := a.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := a.Turn(ctx, "I want to return something"); err != nil {
		t.Fatalf("turn: %v", err)
	}
	hist, _ := history.Load(ctx)
	if len(hist) == 0 || hist[len(hist)-1].Content != msgAskOrderNumber {
		t.Fatalf("history = %v", hist)
	}

	resp, err := a.Turn(ctx, "bye")
	if err != nil || !resp.Completed {
		t.Fatalf("exit turn = %+v, %v", resp, err)
	}
	if hist, _ := history.Load(ctx); len(hist) != 0 {
		t.Errorf("history after exit = %v", hist)
	}
}

func TestAgentRunEmitsEvents(t *testing.T) {
	a, _, _ := newTestAgent(t)
	ctx := WithSessionKey(context.Background(), "s2")

	iter := a.Run(ctx, &adk.AgentInput{Messages: []adk.Message{schema.UserMessage("quit")}})
	var msgs []string
	var exited bool
	for {
		event, ok := iter.Next()
		if !ok {
			break
		}
		if event.Err != nil {
			t.Fatalf("event error: %v", event.Err)
		}
		if event.Output != nil && event.Output.MessageOutput != nil {
			msgs = append(msgs, event.Output.MessageOutput.Message.Content)
		}
		if event.Action != nil && event.Action.Exit {
			exited = true
		}
	}
	if len(msgs) != 1 || !exited {
		t.Fatalf("msgs = %v, exited = %v", msgs, exited)
	}

	iter = a.Run(ctx, &adk.AgentInput{})
	event, ok := iter.Next()
	if !ok || event.Err == nil {
		t.Fatalf("expected error event for empty input")
	}
}
