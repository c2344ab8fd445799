// Package api exposes the conversation and knowledge HTTP endpoints.
//
// Middleware, outermost first: recovery, request id, logging, then
// per-route admission control. Health and info endpoints bypass
// admission, matching the limiter whitelist of the original service.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alexzhang/converse/internal/config"
	"github.com/alexzhang/converse/internal/engine"
	"github.com/alexzhang/converse/internal/knowledge"
	"github.com/alexzhang/converse/internal/ratelimit"
)

// Server holds the handler dependencies.
type Server struct {
	cfg       *config.Config
	engine    *engine.Engine
	knowledge *knowledge.Index // nil when no vector store is configured
	limiter   *ratelimit.Limiter
	logger    *slog.Logger
	startedAt time.Time
}

// NewServer creates the Server. knowledgeIdx may be nil; the knowledge
// routes then answer 503.
func NewServer(cfg *config.Config, eng *engine.Engine, knowledgeIdx *knowledge.Index, limiter *ratelimit.Limiter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:       cfg,
		engine:    eng,
		knowledge: knowledgeIdx,
		limiter:   limiter,
		logger:    logger,
		startedAt: time.Now(),
	}
}

// Handler assembles the route table and middleware chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	chat := s.cfg.RateLimit.ChatPerMinute
	stream := s.cfg.RateLimit.StreamPerMinute

	// Chat
	mux.HandleFunc("POST /api/chat/simple", s.admit(chat, s.handleSimpleChat))
	mux.HandleFunc("POST /api/chat/with-context", s.admit(chat, s.handleChatWithContext))
	mux.HandleFunc("POST /api/chat/conversation", s.admit(chat, s.handleConversation))
	mux.HandleFunc("POST /api/chat/conversation/stream", s.admit(stream, s.handleConversationStream))
	mux.HandleFunc("GET /api/chat/conversation/{id}", s.admit(chat, s.handleConversationInfo))
	mux.HandleFunc("DELETE /api/chat/conversation/{id}", s.admit(chat, s.handleConversationClear))
	mux.HandleFunc("POST /api/chat/rag", s.admit(chat, s.handleRagToggle))
	mux.HandleFunc("GET /api/chat/sessions", s.admit(chat, s.handleSessions))

	// Exempt from admission.
	mux.HandleFunc("GET /api/chat/health", s.handleHealth)
	mux.HandleFunc("GET /api/chat/info", s.handleInfo)

	// Knowledge
	mux.HandleFunc("POST /api/knowledge", s.admit(chat, s.handleKnowledgeCreate))
	mux.HandleFunc("GET /api/knowledge", s.admit(chat, s.handleKnowledgeList))
	mux.HandleFunc("GET /api/knowledge/stats", s.admit(chat, s.handleKnowledgeStats))
	mux.HandleFunc("GET /api/knowledge/{id}", s.admit(chat, s.handleKnowledgeGet))
	mux.HandleFunc("DELETE /api/knowledge/{id}", s.admit(chat, s.handleKnowledgeDelete))
	mux.HandleFunc("POST /api/knowledge/search", s.admit(chat, s.handleKnowledgeSearch))

	var handler http.Handler = mux
	handler = loggingMiddleware(s.logger)(handler)
	handler = requestIDMiddleware(handler)
	handler = recoveryMiddleware(s.logger)(handler)
	return handler
}
