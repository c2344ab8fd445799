package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/alexzhang/converse/internal/i18n"
)

type simpleChatRequest struct {
	Message string `json:"message"`
}

type contextChatRequest struct {
	Message      string `json:"message"`
	SystemPrompt string `json:"systemPrompt"`
}

type conversationRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string `json:"sessionId,omitempty"`
	Response  string `json:"response"`
}

type ragToggleRequest struct {
	SessionID string `json:"sessionId"`
	Enabled   bool   `json:"enabled"`
}

// handleSimpleChat answers a single-turn question with the default
// persona.
func (s *Server) handleSimpleChat(w http.ResponseWriter, r *http.Request) {
	var req simpleChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", "message is required"))
		return
	}

	reply := s.engine.Ask(r.Context(), req.Message)
	writeJSON(w, s.logger, http.StatusOK, chatResponse{Response: reply})
}

// handleChatWithContext answers a single-turn question under a
// caller-supplied system prompt.
func (s *Server) handleChatWithContext(w http.ResponseWriter, r *http.Request) {
	var req contextChatRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" || strings.TrimSpace(req.SystemPrompt) == "" {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", "message and systemPrompt are required"))
		return
	}

	reply := s.engine.AskWithContext(r.Context(), req.SystemPrompt, req.Message)
	writeJSON(w, s.logger, http.StatusOK, chatResponse{Response: reply})
}

// handleConversation runs one multi-turn exchange. An omitted session
// id starts a new conversation; the id is echoed back either way.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", "message is required"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	reply := s.engine.Chat(r.Context(), req.SessionID, req.Message)
	writeJSON(w, s.logger, http.StatusOK, chatResponse{SessionID: req.SessionID, Response: reply})
}

// handleConversationStream runs one exchange and streams the reply as
// SSE chunk events, terminated by exactly one done or error event.
func (s *Server) handleConversationStream(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", "message is required"))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	sw, err := newSSEWriter(w)
	if err != nil {
		writeError(w, s.logger, http.StatusInternalServerError, "internal", i18n.T("api.internal"))
		return
	}
	w.Header().Set("X-Session-ID", req.SessionID)

	s.engine.ChatStream(r.Context(), req.SessionID, req.Message, &sseSink{sw: sw, logger: s.logger})
}

// handleConversationInfo reports whether a session exists, its message
// count, and its RAG flag.
func (s *Server) handleConversationInfo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sessions := s.engine.Sessions()

	info, ok := sessions.Stat(id)
	if !ok {
		writeError(w, s.logger, http.StatusNotFound, "not_found", i18n.Sprintf("chat.session.absent", id))
		return
	}

	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"sessionId":    id,
		"messageCount": info.MessageCount,
		"lastAccess":   info.LastAccess,
		"ragEnabled":   sessions.RagEnabled(id),
	})
}

// handleConversationClear removes a session and its RAG flag.
// Idempotent: clearing an unknown session still succeeds.
func (s *Server) handleConversationClear(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.engine.Sessions().Clear(id)
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"sessionId": id,
		"message":   i18n.T("chat.cleared"),
	})
}

// handleRagToggle flips knowledge retrieval for one session.
func (s *Server) handleRagToggle(w http.ResponseWriter, r *http.Request) {
	var req ragToggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", err))
		return
	}
	if req.SessionID == "" {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", "sessionId is required"))
		return
	}

	s.engine.Sessions().SetRagEnabled(req.SessionID, req.Enabled)

	msg := i18n.T("chat.rag.disabled")
	if req.Enabled {
		msg = i18n.T("chat.rag.enabled")
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"sessionId":  req.SessionID,
		"ragEnabled": req.Enabled,
		"message":    msg,
	})
}

// handleSessions lists live session ids.
func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	sessions := s.engine.Sessions()
	ids := sessions.IDs()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"count":    len(ids),
		"sessions": ids,
	})
}
