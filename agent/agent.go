package agent

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/adk"
	"github.com/cloudwego/eino/schema"
	"github.com/tbxark/returnagent/types"
)

var _ adk.Agent = (*Agent)(nil)

// Agent exposes a Flow as an eino adk.Agent. The session is resolved from the
// routing key in the context, so one Agent serves many conversations.
type Agent struct {
	name        string
	description string
	flow        *Flow
	sessions    *SessionStore
	history     HistoryReadWriter
}

type AgentOption func(*Agent)

// WithHistory records every turn in history.
func WithHistory(history HistoryReadWriter) AgentOption {
	return func(a *Agent) {
		a.history = history
	}
}

func NewAgent(name, description string, flow *Flow, sessions *SessionStore, opts ...AgentOption) *Agent {
	a := &Agent{
		name:        name,
		description: description,
		flow:        flow,
		sessions:    sessions,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

func (a *Agent) Name(ctx context.Context) string {
	return a.name
}

func (a *Agent) Description(ctx context.Context) string {
	return a.description
}

func (a *Agent) Run(ctx context.Context, input *adk.AgentInput, options ...adk.AgentRunOption) *adk.AsyncIterator[*adk.AgentEvent] {
	iter, gen := adk.NewAsyncIteratorPair[*adk.AgentEvent]()
	go func() {
		defer func() {
			e := recover()
			if e != nil {
				gen.Send(&adk.AgentEvent{
					Err: fmt.Errorf("recover from panic: %v", e),
				})
			}
			gen.Close()
		}()
		if input == nil || len(input.Messages) == 0 {
			gen.Send(&adk.AgentEvent{
				Err: fmt.Errorf("no messages in input"),
			})
			return
		}
		resp, err := a.Turn(ctx, input.Messages[len(input.Messages)-1].Content)
		if err != nil {
			gen.Send(&adk.AgentEvent{Err: err})
			return
		}
		gen.Send(&adk.AgentEvent{
			AgentName: a.name,
			Output: &adk.AgentOutput{
				MessageOutput: &adk.MessageVariant{
					IsStreaming: false,
					Message:     schema.AssistantMessage(resp.Message, nil),
					Role:        schema.Assistant,
				},
			},
		})
		if resp.Completed {
			gen.Send(&adk.AgentEvent{
				AgentName: a.name,
				Action:    &adk.AgentAction{Exit: true},
			})
		}
	}()
	return iter
}

// Turn runs one utterance against the stored session and persists the result.
// A completed session is removed from the store along with its transcript.
func (a *Agent) Turn(ctx context.Context, userInput string) (*Response, error) {
	session, err := a.sessions.ReadOrInit(ctx)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	resp, err := a.flow.Invoke(ctx, &Request{Session: session, UserInput: userInput})
	if err != nil {
		return nil, fmt.Errorf("flow invoke failed: %w", err)
	}
	if resp.Completed {
		err = a.sessions.Remove(ctx)
	} else {
		err = a.sessions.Write(ctx, resp.Session)
	}
	if err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if a.history == nil {
		return resp, nil
	}
	if resp.Completed {
		err = a.history.Clear(ctx)
	} else {
		_, err = a.history.AppendTurn(ctx, userInput, resp.Messages)
	}
	if err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	return resp, nil
}

// Start creates the session for the routing key in ctx and runs it to its
// greeting.
func (a *Agent) Start(ctx context.Context) (*Response, error) {
	session, err := a.sessions.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("init session: %w", err)
	}
	resp, err := a.flow.Start(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("flow start failed: %w", err)
	}
	if err := a.sessions.Write(ctx, resp.Session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if a.history != nil {
		if _, err := a.history.AppendTurn(ctx, "", resp.Messages); err != nil {
			return nil, fmt.Errorf("save history: %w", err)
		}
	}
	return resp, nil
}

// Session returns a snapshot of the session routed by ctx.
func (a *Agent) Session(ctx context.Context) (*types.Session, error) {
	return a.sessions.Read(ctx)
}

// End discards the session and its transcript.
func (a *Agent) End(ctx context.Context) error {
	if err := a.sessions.Remove(ctx); err != nil {
		return err
	}
	if a.history != nil {
		return a.history.Clear(ctx)
	}
	return nil
}
