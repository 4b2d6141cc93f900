package types

import "time"

type State string

const (
	StateGreet              State = "GREET"
	StateDetectIntent       State = "DETECT_INTENT"
	StateAskOrderNumber     State = "ASK_ORDER_NUMBER"
	StateRetrieveOrder      State = "RETRIEVE_ORDER"
	StateFetchPolicy        State = "FETCH_POLICY"
	StateResolveEligibility State = "RESOLVE_ELIGIBILITY"
	StateAskContinue        State = "ASK_CONTINUE"
	StateEnd                State = "END"
)

// Prompt marks the question a suspended session is waiting on.
type Prompt string

const (
	PromptNone         Prompt = ""
	PromptUtterance    Prompt = "utterance"
	PromptClarify      Prompt = "clarify"
	PromptOrderNumber  Prompt = "order_number"
	PromptAnythingElse Prompt = "anything_else"
	PromptContinue     Prompt = "continue"
)

type Status string

const (
	StatusEligible    Status = "ELIGIBLE"
	StatusNotEligible Status = "NOT_ELIGIBLE"
	StatusUnknown     Status = "UNKNOWN"
)

const DefaultReturnWindowDays = 30

type OrderRecord struct {
	OrderNumber  string     `json:"order_number"`
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`
	RawText      string     `json:"raw_text"`
	Source       string     `json:"source,omitempty"`
}

type PolicyDocument struct {
	ReturnWindowDays int    `json:"return_window_days"`
	RawText          string `json:"raw_text"`
	Source           string `json:"source,omitempty"`
}

// DefaultPolicy is substituted whenever the policy cannot be fetched.
func DefaultPolicy() *PolicyDocument {
	return &PolicyDocument{
		ReturnWindowDays: DefaultReturnWindowDays,
		RawText:          "Standard 30-day return policy applies.",
		Source:           "default",
	}
}

type EligibilityVerdict struct {
	Status            Status     `json:"status"`
	DaysSinceDelivery *int       `json:"days_since_delivery,omitempty"`
	WindowDays        int        `json:"window_days"`
	WindowEndsOn      *time.Time `json:"window_ends_on,omitempty"`
	// FutureDelivery is set when the delivery date lies after today and the
	// day count was clamped to zero.
	FutureDelivery bool `json:"future_delivery,omitempty"`
}

type Session struct {
	ID                 string              `json:"id"`
	State              State               `json:"state"`
	Awaiting           Prompt              `json:"awaiting,omitempty"`
	LastUserText       string              `json:"last_user_text,omitempty"`
	PendingOrderNumber string              `json:"pending_order_number,omitempty"`
	OrderRecord        *OrderRecord        `json:"order_record,omitempty"`
	Policy             *PolicyDocument     `json:"policy,omitempty"`
	Verdict            *EligibilityVerdict `json:"verdict,omitempty"`
	SlotRetryCount     int                 `json:"slot_retry_count,omitempty"`
	ShouldTerminate    bool                `json:"should_terminate,omitempty"`
}

func NewSession(id string) *Session {
	return &Session{
		ID:    id,
		State: StateGreet,
	}
}

// Clone returns a deep copy so callers never share mutable session state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.OrderRecord != nil {
		rec := *s.OrderRecord
		if rec.DeliveryDate != nil {
			d := *rec.DeliveryDate
			rec.DeliveryDate = &d
		}
		out.OrderRecord = &rec
	}
	if s.Policy != nil {
		p := *s.Policy
		out.Policy = &p
	}
	if s.Verdict != nil {
		v := *s.Verdict
		if v.DaysSinceDelivery != nil {
			n := *v.DaysSinceDelivery
			v.DaysSinceDelivery = &n
		}
		if v.WindowEndsOn != nil {
			d := *v.WindowEndsOn
			v.WindowEndsOn = &d
		}
		out.Verdict = &v
	}
	return &out
}

// Candidate is one ranked hit returned by the retrieval collaborator.
type Candidate struct {
	Text   string  `json:"text"`
	Source string  `json:"source,omitempty"`
	Score  float64 `json:"score,omitempty"`
}

// ExplanationRequest carries the prompt fields for the text-generation collaborator.
type ExplanationRequest struct {
	OrderInfo   string              `json:"order_info"`
	PolicyText  string              `json:"policy_text"`
	CurrentDate time.Time           `json:"current_date"`
	Verdict     *EligibilityVerdict `json:"verdict,omitempty"`
	OrderNumber string              `json:"order_number,omitempty"`
}
