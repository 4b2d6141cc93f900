package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	"github.com/tbxark/returnagent/agent"
)

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	id, resp, err := s.newSession(r.Context())
	if err != nil {
		slog.Error("Failed to start session", "error", err)
		Error(w, http.StatusInternalServerError, "failed to start session")
		return
	}
	slog.Info("Session started", "session_id", id)
	JSON(w, http.StatusCreated, newTurnResponse(id, resp))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := s.agent.Session(agent.WithSessionKey(r.Context(), id))
	if err != nil {
		s.writeSessionError(w, id, err)
		return
	}
	JSON(w, http.StatusOK, session)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	unlock := s.lock(id)
	defer unlock()
	if err := s.agent.End(agent.WithSessionKey(r.Context(), id)); err != nil {
		s.writeSessionError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		Error(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	var req messageRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		Error(w, http.StatusBadRequest, "text is required")
		return
	}

	resp, err := s.turn(r.Context(), id, req.Text)
	if err != nil {
		s.writeSessionError(w, id, err)
		return
	}
	JSON(w, http.StatusOK, newTurnResponse(id, resp))
}

func (s *Server) writeSessionError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, agent.ErrSessionNotFound):
		Error(w, http.StatusNotFound, "session not found")
	case errors.Is(err, agent.ErrSessionEnded):
		Error(w, http.StatusGone, "session has ended")
	default:
		slog.Error("Session request failed", "session_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
	}
}
