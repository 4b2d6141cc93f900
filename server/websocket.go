package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/tbxark/returnagent/agent"
)

// handleWebSocket chats over one socket: every text frame is an utterance and
// every reply is a JSON frame. Frames may be plain text or {"text": "..."}.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.agent.Session(agent.WithSessionKey(r.Context(), id)); err != nil {
		s.writeSessionError(w, id, err)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "session_id", id)
		return
	}
	ws.SetReadLimit(s.maxBodySize)

	status, reason := s.chatLoop(r.Context(), ws, id)
	if err := ws.Close(status, reason); err != nil {
		slog.Debug("Failed to close websocket", "error", err, "session_id", id)
	}
}

func (s *Server) chatLoop(ctx context.Context, ws *websocket.Conn, id string) (websocket.StatusCode, string) {
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "session_id", id)
			} else {
				slog.Warn("WebSocket read error", "error", err, "session_id", id)
			}
			return websocket.StatusNormalClosure, ""
		}
		if typ != websocket.MessageText {
			return websocket.StatusUnsupportedData, "text frames only"
		}

		resp, err := s.turn(ctx, id, frameText(data))
		if err != nil {
			switch {
			case errors.Is(err, agent.ErrSessionNotFound), errors.Is(err, agent.ErrSessionEnded):
				_ = s.writeFrame(ctx, ws, map[string]string{"error": "session not found"})
				return websocket.StatusNormalClosure, "session ended"
			default:
				slog.Error("WebSocket turn failed", "session_id", id, "error", err)
				return websocket.StatusInternalError, "internal error"
			}
		}
		if err := s.writeFrame(ctx, ws, newTurnResponse(id, resp)); err != nil {
			slog.Warn("WebSocket write error", "error", err, "session_id", id)
			return websocket.StatusInternalError, "write failed"
		}
		if resp.Completed {
			return websocket.StatusNormalClosure, "session ended"
		}
	}
}

func (s *Server) writeFrame(ctx context.Context, ws *websocket.Conn, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	return ws.Write(ctx, websocket.MessageText, data)
}

func frameText(data []byte) string {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		var req messageRequest
		if err := sonic.Unmarshal(data, &req); err == nil {
			return req.Text
		}
	}
	return trimmed
}
