package agent

import (
	"context"
	"time"

	"github.com/cloudwego/eino/schema"
)

type Trimmer interface {
	Trim(history []*schema.Message) []*schema.Message
}

// KeepSystemLastNTrimmer keeps all system messages and the last N others.
// When N <= 0, it keeps only system messages.
type KeepSystemLastNTrimmer struct {
	N int
}

func (t KeepSystemLastNTrimmer) Trim(history []*schema.Message) []*schema.Message {
	var others int
	for _, m := range history {
		if m != nil && m.Role != schema.System {
			others++
		}
	}
	drop := others - max(t.N, 0)
	if drop <= 0 {
		return history
	}
	out := make([]*schema.Message, 0, len(history)-drop)
	for _, m := range history {
		if m == nil {
			continue
		}
		if m.Role != schema.System && drop > 0 {
			drop--
			continue
		}
		out = append(out, m)
	}
	return out
}

// HistoryReadWriter keeps the transcript of a session, routed like sessions.
type HistoryReadWriter interface {
	Load(ctx context.Context) ([]*schema.Message, error)
	Clear(ctx context.Context) error
	// AppendTurn records the user utterance and the replies it produced and
	// returns the trimmed transcript.
	AppendTurn(ctx context.Context, userInput string, replies []string) ([]*schema.Message, error)
}

type HistoryStore struct {
	store   Store[[]*schema.Message]
	trimmer Trimmer
}

func NewHistoryStore(core Cache[[]*schema.Message], trimmer Trimmer) *HistoryStore {
	return &HistoryStore{
		store:   NewStore(core, "agent:history", SessionKeyFromContext),
		trimmer: trimmer,
	}
}

// NewMemoryHistoryStore keeps transcripts in process; ttl should match the
// session ttl so a transcript never outlives its session.
func NewMemoryHistoryStore(ttl time.Duration, trimmer Trimmer) *HistoryStore {
	return NewHistoryStore(NewMemoryCache[[]*schema.Message](ttl), trimmer)
}

func (s *HistoryStore) Load(ctx context.Context) ([]*schema.Message, error) {
	hist, _, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	return append([]*schema.Message(nil), hist...), nil
}

func (s *HistoryStore) Clear(ctx context.Context) error {
	return s.store.Del(ctx)
}

func (s *HistoryStore) AppendTurn(ctx context.Context, userInput string, replies []string) ([]*schema.Message, error) {
	hist, err := s.Load(ctx)
	if err != nil {
		return nil, err
	}
	if userInput != "" {
		hist = append(hist, schema.UserMessage(userInput))
	}
	for _, reply := range replies {
		hist = append(hist, schema.AssistantMessage(reply, nil))
	}
	if s.trimmer != nil {
		hist = s.trimmer.Trim(hist)
	}
	if err := s.store.Set(ctx, hist); err != nil {
		return nil, err
	}
	return hist, nil
}

var _ HistoryReadWriter = (*HistoryStore)(nil)
