package api

import (
	"net/http"
	"time"

	"github.com/alexzhang/converse/internal/i18n"
)

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"status": i18n.T("api.health.ok"),
	})
}

// handleInfo reports system information: model, uptime, session count,
// and whether the knowledge subsystem is active.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"model":            s.cfg.AI.ModelName,
		"uptime":           time.Since(s.startedAt).Round(time.Second).String(),
		"sessions":         s.engine.Sessions().Count(),
		"knowledgeEnabled": s.knowledge != nil,
		"rateLimitEnabled": s.cfg.RateLimit.Enabled,
	}
	if s.knowledge != nil {
		info["embeddingModel"] = s.knowledge.Stats().EmbeddingModel
	}
	writeJSON(w, s.logger, http.StatusOK, info)
}
