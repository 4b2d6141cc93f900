package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/tbxark/returnagent/dialogue"
	"github.com/tbxark/returnagent/eligibility"
	"github.com/tbxark/returnagent/extract"
	"github.com/tbxark/returnagent/intent"
	"github.com/tbxark/returnagent/patch"
	"github.com/tbxark/returnagent/policy"
	"github.com/tbxark/returnagent/retrieval"
	"github.com/tbxark/returnagent/types"
)

const (
	DefaultMaxSlotRetries = 3
	defaultMaxSteps       = 64
)

// Flow drives one return conversation per session. It holds no per-session
// state, so a single Flow serves any number of sessions concurrently.
type Flow struct {
	recognizer     intent.Recognizer
	searcher       retrieval.Searcher
	policyFetcher  policy.Fetcher
	generator      dialogue.Generator
	clock          func() time.Time
	maxSlotRetries int
	maxSteps       int
}

type FlowOption func(*Flow)

// WithClock sets the source of "today" for eligibility decisions.
func WithClock(clock func() time.Time) FlowOption {
	return func(f *Flow) {
		if clock != nil {
			f.clock = clock
		}
	}
}

func WithRecognizer(recognizer intent.Recognizer) FlowOption {
	return func(f *Flow) {
		if recognizer != nil {
			f.recognizer = recognizer
		}
	}
}

// WithMaxSlotRetries sets how many invalid order-number replies are tolerated
// before the flow stops asking.
func WithMaxSlotRetries(n int) FlowOption {
	return func(f *Flow) {
		if n > 0 {
			f.maxSlotRetries = n
		}
	}
}

func NewFlow(
	searcher retrieval.Searcher,
	policyFetcher policy.Fetcher,
	generator dialogue.Generator,
	opts ...FlowOption,
) (*Flow, error) {
	if searcher == nil {
		return nil, fmt.Errorf("order searcher is required")
	}
	if policyFetcher == nil {
		return nil, fmt.Errorf("policy fetcher is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("dialogue generator is required")
	}
	f := &Flow{
		recognizer:     intent.NewLocalRecognizer(),
		searcher:       searcher,
		policyFetcher:  policyFetcher,
		generator:      generator,
		clock:          time.Now,
		maxSlotRetries: DefaultMaxSlotRetries,
		maxSteps:       defaultMaxSteps,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	return f, nil
}

// NewToolBasedFlow phrases verdicts with chatModel and consults it for
// utterances the local vocabulary leaves unclear. The local recognizer and
// generator take over when the model fails.
func NewToolBasedFlow(
	chatModel model.ToolCallingChatModel,
	searcher retrieval.Searcher,
	policyFetcher policy.Fetcher,
	opts ...FlowOption,
) (*Flow, error) {
	recognizer, err := intent.NewToolBasedRecognizer(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool-based intent recognizer: %w", err)
	}
	generator := dialogue.NewFailbackGenerator(
		dialogue.NewToolBasedGenerator(chatModel),
		dialogue.LocalGenerator{},
	)
	opts = append([]FlowOption{
		WithRecognizer(intent.NewLocalFirstRecognizer(intent.NewLocalRecognizer(), recognizer)),
	}, opts...)
	return NewFlow(searcher, policyFetcher, generator, opts...)
}

// Start runs a fresh session up to its first question.
func (f *Flow) Start(ctx context.Context, session *types.Session) (*Response, error) {
	if session == nil {
		return nil, fmt.Errorf("session is required")
	}
	return f.invoke(ctx, session, nil)
}

// Invoke feeds one user utterance to the session. A session that has not
// been started is greeted first.
func (f *Flow) Invoke(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.Session == nil {
		return nil, fmt.Errorf("session is required")
	}
	input := strings.TrimSpace(req.UserInput)
	return f.invoke(ctx, req.Session, &input)
}

func (f *Flow) invoke(ctx context.Context, session *types.Session, input *string) (*Response, error) {
	ctx = callbacks.EnsureRunInfo(ctx, "ReturnFlow", "Agent")
	ctx = callbacks.OnStart(ctx, map[string]any{
		"session_id": session.ID,
		"state":      string(session.State),
		"input":      input,
	})

	resp, err := f.run(ctx, session, input)
	if err != nil {
		callbacks.OnError(ctx, err)
		return nil, err
	}

	callbacks.OnEnd(ctx, map[string]any{
		"state":     string(resp.Session.State),
		"awaiting":  string(resp.Session.Awaiting),
		"completed": resp.Completed,
	})
	return resp, nil
}

// run advances the state machine until it needs input it does not have or
// reaches END. input is consumed by the first suspended state it meets.
func (f *Flow) run(ctx context.Context, current *types.Session, input *string) (*Response, error) {
	if current.State == types.StateEnd {
		return nil, ErrSessionEnded
	}
	session := current.Clone()
	if session.State == "" {
		session.State = types.StateGreet
	}

	var messages []string
	for step := 0; session.State != types.StateEnd; step++ {
		if step >= f.maxSteps {
			return nil, fmt.Errorf("%w: stopped in %s", ErrTooManySteps, session.State)
		}

		var tr Transition
		var err error
		if session.Awaiting != types.PromptNone {
			if input == nil {
				break
			}
			text := *input
			input = nil
			tr, err = f.reply(ctx, session, text)
		} else {
			tr, err = f.enter(ctx, session)
		}
		if err != nil {
			return nil, err
		}

		slog.Debug("Transition", "session", session.ID, "from", session.State, "to", tr.Next, "await", tr.Await)
		session, err = applyTransition(session, tr)
		if err != nil {
			return nil, err
		}
		messages = append(messages, tr.Messages...)
	}

	return &Response{
		Message:   strings.Join(messages, "\n\n"),
		Messages:  messages,
		Session:   session,
		Completed: session.State == types.StateEnd,
	}, nil
}

func applyTransition(session *types.Session, tr Transition) (*types.Session, error) {
	ops := make([]patch.Operation, 0, len(tr.Ops)+2)
	ops = append(ops, tr.Ops...)
	ops = append(ops, patch.Replace(pathState, tr.Next))
	if tr.Await != types.PromptNone {
		ops = append(ops, patch.Replace(pathAwaiting, tr.Await))
	} else {
		ops = append(ops, patch.Remove(pathAwaiting))
	}
	next, err := patch.ApplyRFC6902(*session, ops, sessionPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to apply transition to %s: %w", tr.Next, err)
	}
	return &next, nil
}

// enter runs the state's work when the session is not waiting for input.
func (f *Flow) enter(ctx context.Context, s *types.Session) (Transition, error) {
	switch s.State {
	case types.StateGreet:
		return Transition{Next: types.StateGreet, Await: types.PromptUtterance, Messages: []string{msgGreeting}}, nil
	case types.StateDetectIntent:
		return f.detectIntent(ctx, s), nil
	case types.StateAskOrderNumber:
		return f.askOrderNumber(s), nil
	case types.StateRetrieveOrder:
		return f.retrieveOrder(ctx, s), nil
	case types.StateFetchPolicy:
		return f.fetchPolicy(ctx, s), nil
	case types.StateResolveEligibility:
		return f.resolveEligibility(ctx, s), nil
	case types.StateAskContinue:
		return Transition{Next: types.StateAskContinue, Await: types.PromptContinue, Messages: []string{msgAnythingElse}}, nil
	default:
		return Transition{}, fmt.Errorf("unknown state %q", s.State)
	}
}

// reply hands the utterance to the state that asked for it.
func (f *Flow) reply(ctx context.Context, s *types.Session, text string) (Transition, error) {
	switch {
	case s.State == types.StateGreet:
		return Transition{
			Next: types.StateDetectIntent,
			Ops:  []patch.Operation{patch.Replace(pathLastUserText, text)},
		}, nil
	case s.State == types.StateDetectIntent:
		if f.classify(ctx, text).IsExit() {
			return endTransition(), nil
		}
		return Transition{
			Next: types.StateDetectIntent,
			Ops:  []patch.Operation{patch.Replace(pathLastUserText, text)},
		}, nil
	case s.State == types.StateAskOrderNumber && s.Awaiting == types.PromptAnythingElse:
		if f.classify(ctx, text).IsExit() {
			return endTransition(), nil
		}
		return Transition{
			Next: types.StateDetectIntent,
			Ops: []patch.Operation{
				patch.Replace(pathLastUserText, text),
				patch.Remove(pathSlotRetryCount),
			},
		}, nil
	case s.State == types.StateAskOrderNumber:
		return f.receiveOrderNumber(ctx, s, text), nil
	case s.State == types.StateAskContinue:
		if f.classify(ctx, text).IsExit() {
			return endTransition(), nil
		}
		return Transition{
			Next: types.StateDetectIntent,
			Ops: []patch.Operation{
				patch.Replace(pathLastUserText, text),
				patch.Remove(pathPendingOrder),
				patch.Remove(pathOrderRecord),
				patch.Remove(pathPolicy),
				patch.Remove(pathVerdict),
				patch.Remove(pathSlotRetryCount),
			},
		}, nil
	default:
		return Transition{}, fmt.Errorf("state %q does not accept input", s.State)
	}
}

func endTransition() Transition {
	return Transition{
		Next:     types.StateEnd,
		Messages: []string{msgFarewell},
		Ops:      []patch.Operation{patch.Replace(pathShouldTerminate, true)},
	}
}

// classify never fails: a recognizer error leaves the utterance unclear, with
// the order number still extracted locally.
func (f *Flow) classify(ctx context.Context, text string) *intent.Classification {
	c, err := f.recognizer.Recognize(ctx, text)
	if err != nil || c == nil {
		slog.Warn("Intent recognition failed, treating as unclear", "err", err)
		return &intent.Classification{Intent: intent.Unclear, OrderNumber: extract.Order(text)}
	}
	return c
}

func (f *Flow) detectIntent(ctx context.Context, s *types.Session) Transition {
	c := f.classify(ctx, s.LastUserText)
	slog.Debug("Detected intent", "session", s.ID, "intent", c.Intent, "order_number", c.OrderNumber)
	switch {
	case c.IsExit():
		return endTransition()
	case c.Intent == intent.Return:
		return Transition{Next: types.StateAskOrderNumber}
	case c.OrderNumber != "":
		return Transition{
			Next: types.StateRetrieveOrder,
			Ops:  []patch.Operation{patch.Replace(pathPendingOrder, c.OrderNumber)},
		}
	default:
		return Transition{Next: types.StateDetectIntent, Await: types.PromptClarify, Messages: []string{msgClarify}}
	}
}

func (f *Flow) askOrderNumber(s *types.Session) Transition {
	if s.SlotRetryCount >= f.maxSlotRetries {
		return Transition{
			Next:     types.StateAskOrderNumber,
			Await:    types.PromptAnythingElse,
			Messages: []string{fmt.Sprintf(msgGiveUp, f.maxSlotRetries), msgAnythingElse},
		}
	}
	prompt := msgAskOrderNumber
	if s.SlotRetryCount > 0 {
		prompt = msgInvalidOrder
	}
	return Transition{Next: types.StateAskOrderNumber, Await: types.PromptOrderNumber, Messages: []string{prompt}}
}

func (f *Flow) receiveOrderNumber(ctx context.Context, s *types.Session, text string) Transition {
	c := f.classify(ctx, text)
	switch {
	case c.IsExit():
		return endTransition()
	case c.OrderNumber != "":
		return Transition{
			Next: types.StateRetrieveOrder,
			Ops: []patch.Operation{
				patch.Replace(pathLastUserText, text),
				patch.Replace(pathPendingOrder, c.OrderNumber),
				patch.Remove(pathSlotRetryCount),
			},
		}
	default:
		slog.Debug("No order number in reply", "session", s.ID, "retries", s.SlotRetryCount+1)
		return Transition{
			Next: types.StateAskOrderNumber,
			Ops: []patch.Operation{
				patch.Replace(pathLastUserText, text),
				patch.Replace(pathSlotRetryCount, s.SlotRetryCount+1),
			},
		}
	}
}

func (f *Flow) retrieveOrder(ctx context.Context, s *types.Session) Transition {
	number := s.PendingOrderNumber
	if number == "" {
		return Transition{Next: types.StateAskOrderNumber}
	}
	notFound := func(message string) Transition {
		return Transition{
			Next:     types.StateAskOrderNumber,
			Messages: []string{message},
			Ops:      []patch.Operation{patch.Remove(pathPendingOrder)},
		}
	}

	candidates, err := f.searcher.Search(ctx, number)
	if err != nil {
		slog.Warn("Order retrieval failed", "session", s.ID, "order_number", number, "err", err)
		return notFound(msgLookupFailed)
	}
	if len(candidates) == 0 {
		return notFound(msgOrderNotFound)
	}

	top := candidates[0]
	embedded := extract.EmbeddedOrderNumber(top.Text)
	if embedded == "" {
		embedded = extract.Order(top.Text)
	}
	if embedded != number {
		slog.Debug("Discarding mismatched order record", "session", s.ID, "query", number, "found", embedded)
		return notFound(fmt.Sprintf(msgOrderMismatch, number))
	}

	record := &types.OrderRecord{
		OrderNumber: number,
		RawText:     top.Text,
		Source:      top.Source,
	}
	if delivered, ok := extract.DeliveryDate(top.Text); ok {
		record.DeliveryDate = &delivered
	}
	return Transition{
		Next:     types.StateFetchPolicy,
		Messages: []string{fmt.Sprintf(msgOrderFound, strings.TrimSpace(top.Text))},
		Ops:      []patch.Operation{patch.Replace(pathOrderRecord, record)},
	}
}

func (f *Flow) fetchPolicy(ctx context.Context, s *types.Session) Transition {
	query := "return policy"
	if s.OrderRecord != nil && s.OrderRecord.DeliveryDate != nil {
		query = fmt.Sprintf("return policy for an order delivered on %s", s.OrderRecord.DeliveryDate.Format(types.DateLayout))
	}

	var messages []string
	doc, err := f.policyFetcher.Fetch(ctx, query)
	if err != nil || doc == nil {
		slog.Warn("Policy fetch failed, using default policy", "session", s.ID, "err", err)
		doc = types.DefaultPolicy()
		messages = append(messages, msgPolicyFallback)
	}
	return Transition{
		Next:     types.StateResolveEligibility,
		Messages: messages,
		Ops:      []patch.Operation{patch.Replace(pathPolicy, doc)},
	}
}

func (f *Flow) resolveEligibility(ctx context.Context, s *types.Session) Transition {
	today := f.clock()
	verdict := eligibility.Resolve(s.OrderRecord, s.Policy, today)
	slog.Debug("Resolved eligibility", "session", s.ID, "status", verdict.Status, "window", verdict.WindowDays)

	req := &types.ExplanationRequest{
		CurrentDate: today,
		Verdict:     &verdict,
		OrderNumber: s.PendingOrderNumber,
	}
	if s.OrderRecord != nil {
		req.OrderInfo = s.OrderRecord.RawText
		req.OrderNumber = s.OrderRecord.OrderNumber
	}
	if s.Policy != nil {
		req.PolicyText = s.Policy.RawText
	}

	explanation, err := f.generator.Explain(ctx, req)
	if err != nil || strings.TrimSpace(explanation) == "" {
		slog.Warn("Explanation generation failed", "session", s.ID, "err", err)
		explanation = fmt.Sprintf(msgExplainFailed, verdict.Status)
	}
	return Transition{
		Next:     types.StateAskContinue,
		Messages: []string{explanation},
		Ops:      []patch.Operation{patch.Replace(pathVerdict, &verdict)},
	}
}
