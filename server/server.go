// Package server exposes the return assistant over HTTP and WebSocket. Each
// session is driven by at most one turn at a time.
package server

import (
	"context"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/tbxark/returnagent/agent"
	"github.com/tbxark/returnagent/types"
)

const defaultMaxRequestBodySize = 16 << 10

type Server struct {
	agent       *agent.Agent
	maxBodySize int64

	mu    sync.Mutex
	locks map[string]*sessionLock
}

// sessionLock is held in Server.locks only while some request uses it.
type sessionLock struct {
	sync.Mutex
	refs int
}

type Option func(*Server)

func WithMaxRequestBodySize(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBodySize = n
		}
	}
}

func New(a *agent.Agent, opts ...Option) *Server {
	s := &Server{
		agent:       a,
		maxBodySize: defaultMaxRequestBodySize,
		locks:       make(map[string]*sessionLock),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes registers session routes on r.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Delete("/{id}", s.handleDelete)
		r.Post("/{id}/messages", s.handleMessage)
		r.Get("/{id}/ws", s.handleWebSocket)
	})
}

type messageRequest struct {
	Text string `json:"text"`
}

type turnResponse struct {
	SessionID string       `json:"session_id"`
	Message   string       `json:"message"`
	Messages  []string     `json:"messages"`
	State     types.State  `json:"state"`
	Awaiting  types.Prompt `json:"awaiting,omitempty"`
	Completed bool         `json:"completed"`
}

func newTurnResponse(id string, resp *agent.Response) *turnResponse {
	return &turnResponse{
		SessionID: id,
		Message:   resp.Message,
		Messages:  resp.Messages,
		State:     resp.Session.State,
		Awaiting:  resp.Session.Awaiting,
		Completed: resp.Completed,
	}
}

// lock serialises turns on one session and returns its unlock function. The
// entry for id is dropped once no request holds or waits on it.
func (s *Server) lock(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.mu.Unlock()
	l.Lock()
	return func() {
		l.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.mu.Unlock()
	}
}

func (s *Server) newSession(ctx context.Context) (string, *agent.Response, error) {
	id := uuid.NewString()
	resp, err := s.agent.Start(agent.WithSessionKey(ctx, id))
	return id, resp, err
}

// turn runs one utterance against session id under its lock.
func (s *Server) turn(ctx context.Context, id, text string) (*agent.Response, error) {
	unlock := s.lock(id)
	defer unlock()
	ctx = agent.WithSessionKey(ctx, id)
	if _, err := s.agent.Session(ctx); err != nil {
		return nil, err
	}
	return s.agent.Turn(ctx, text)
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	data, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
