package agent

import (
	"errors"

	"github.com/tbxark/returnagent/patch"
	"github.com/tbxark/returnagent/types"
)

var (
	ErrSessionEnded = errors.New("session has ended")
	ErrTooManySteps = errors.New("too many state transitions in one turn")
)

type Request struct {
	Session   *types.Session `json:"session"`
	UserInput string         `json:"user_input"`
}

type Response struct {
	// Message joins Messages for surfaces that print a single reply.
	Message   string         `json:"message,omitempty"`
	Messages  []string       `json:"messages,omitempty"`
	Session   *types.Session `json:"session,omitempty"`
	Completed bool           `json:"completed"`
}

// Transition is what a state handler decides: the next state, the session
// fields to update, what to say, and whether to wait for the user.
type Transition struct {
	Next     types.State
	Await    types.Prompt
	Messages []string
	Ops      []patch.Operation
}

const (
	pathState           = "/state"
	pathAwaiting        = "/awaiting"
	pathLastUserText    = "/last_user_text"
	pathPendingOrder    = "/pending_order_number"
	pathOrderRecord     = "/order_record"
	pathPolicy          = "/policy"
	pathVerdict         = "/verdict"
	pathSlotRetryCount  = "/slot_retry_count"
	pathShouldTerminate = "/should_terminate"
)

// sessionPaths lists every field a transition may touch. The id is not patchable.
var sessionPaths = patch.AllowedPaths(
	pathState,
	pathAwaiting,
	pathLastUserText,
	pathPendingOrder,
	pathOrderRecord,
	pathPolicy,
	pathVerdict,
	pathSlotRetryCount,
	pathShouldTerminate,
)

const (
	msgGreeting       = "Hi! How can I help you today?"
	msgClarify        = "How can I help you?"
	msgAskOrderNumber = "Could you please provide your order number?"
	msgInvalidOrder   = "I can't help without a valid order number. Could you provide one?"
	msgGiveUp         = "I wasn't able to get a valid order number after %d tries."
	msgAnythingElse   = "Is there anything else I can help you with?"
	msgOrderNotFound  = "Sorry, I couldn't find an order with that number."
	msgOrderMismatch  = "Sorry, I couldn't find order number %s."
	msgLookupFailed   = "I ran into a problem looking up your order. Let's try again."
	msgOrderFound     = "I found your order:\n%s"
	msgPolicyFallback = "I had trouble retrieving the return policy, so I'll go by the standard 30-day policy."
	msgExplainFailed  = "I'm sorry, I couldn't prepare a detailed explanation right now. Your order's return status is %s."
	msgFarewell       = "Thanks for chatting. Have a great day!"
)
