package intent

import "context"

type Intent string

const (
	Exit        Intent = "exit"
	Return      Intent = "return"
	OrderNumber Intent = "order_number"
	Unclear     Intent = "unclear"
)

// Classification is the outcome of reading one utterance. OrderNumber is set
// whenever a digit run could be extracted, whatever the intent.
type Classification struct {
	Intent      Intent `json:"intent"`
	OrderNumber string `json:"order_number,omitempty"`
}

func (c *Classification) IsExit() bool {
	return c != nil && c.Intent == Exit
}

type Recognizer interface {
	Recognize(ctx context.Context, text string) (*Classification, error)
}
