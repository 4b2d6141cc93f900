package agent

import (
	"context"
	"errors"
	"time"

	"github.com/tbxark/returnagent/types"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionReadWriter stores sessions routed by the key set with WithSessionKey.
type SessionReadWriter interface {
	Init(ctx context.Context) (*types.Session, error)
	Read(ctx context.Context) (*types.Session, error)
	Write(ctx context.Context, session *types.Session) error
	Remove(ctx context.Context) error
}

type sessionKeyContext struct{}

// WithSessionKey sets the routing key for session and history storage.
func WithSessionKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, sessionKeyContext{}, key)
}

// SessionKeyFromContext gets the routing key from the context.
func SessionKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(sessionKeyContext{}).(string)
	return key, ok && key != ""
}

// SessionStore keeps sessions in a Cache. Sessions are cloned on the way in
// and out so no two callers ever hold the same *types.Session.
type SessionStore struct {
	store Store[*types.Session]
}

func NewSessionStore(core Cache[*types.Session]) *SessionStore {
	return &SessionStore{store: NewStore(core, "agent:session", SessionKeyFromContext)}
}

// NewMemorySessionStore keeps sessions in memory, dropping those idle for
// longer than ttl when ttl is positive.
func NewMemorySessionStore(ttl time.Duration) *SessionStore {
	return NewSessionStore(NewMemoryCache[*types.Session](ttl))
}

// Init creates and stores a fresh session whose id is the routing key.
func (s *SessionStore) Init(ctx context.Context) (*types.Session, error) {
	key, ok := SessionKeyFromContext(ctx)
	if !ok {
		return nil, ErrNoSessionKey
	}
	session := types.NewSession(key)
	if err := s.store.Set(ctx, session.Clone()); err != nil {
		return nil, err
	}
	return session, nil
}

func (s *SessionStore) Read(ctx context.Context) (*types.Session, error) {
	session, ok, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session.Clone(), nil
}

// ReadOrInit returns the stored session, creating one when none exists.
func (s *SessionStore) ReadOrInit(ctx context.Context) (*types.Session, error) {
	session, err := s.Read(ctx)
	if errors.Is(err, ErrSessionNotFound) {
		return s.Init(ctx)
	}
	return session, err
}

func (s *SessionStore) Write(ctx context.Context, session *types.Session) error {
	return s.store.Set(ctx, session.Clone())
}

func (s *SessionStore) Remove(ctx context.Context) error {
	return s.store.Del(ctx)
}

var _ SessionReadWriter = (*SessionStore)(nil)
