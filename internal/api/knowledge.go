package api

import (
	"net/http"
	"strings"

	"github.com/alexzhang/converse/internal/i18n"
	"github.com/alexzhang/converse/internal/knowledge"
)

type knowledgeCreateRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type knowledgeSearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"maxResults"`
}

// requireKnowledge answers 503 when the knowledge subsystem is not
// configured and reports whether the caller may proceed.
func (s *Server) requireKnowledge(w http.ResponseWriter) bool {
	if s.knowledge == nil {
		writeError(w, s.logger, http.StatusServiceUnavailable, "knowledge_disabled", "knowledge base is not configured")
		return false
	}
	return true
}

// handleKnowledgeCreate chunks, embeds, and stores a knowledge entry.
func (s *Server) handleKnowledgeCreate(w http.ResponseWriter, r *http.Request) {
	if !s.requireKnowledge(w) {
		return
	}

	var req knowledgeCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", err))
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Content) == "" {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", "title and content are required"))
		return
	}

	id, err := s.knowledge.Add(r.Context(), req.Title, req.Content)
	if err != nil {
		s.logger.Error("failed to add knowledge", "title", req.Title, "error", err)
		writeError(w, s.logger, http.StatusInternalServerError, "internal", i18n.T("api.internal"))
		return
	}

	entry, _ := s.knowledge.Get(id)
	writeJSON(w, s.logger, http.StatusCreated, map[string]any{
		"message": i18n.T("knowledge.added"),
		"entry":   entry,
	})
}

// handleKnowledgeList returns all entries, newest first.
func (s *Server) handleKnowledgeList(w http.ResponseWriter, r *http.Request) {
	if !s.requireKnowledge(w) {
		return
	}

	entries := s.knowledge.List()
	if entries == nil {
		entries = []knowledge.Entry{}
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

// handleKnowledgeGet returns one entry's metadata.
func (s *Server) handleKnowledgeGet(w http.ResponseWriter, r *http.Request) {
	if !s.requireKnowledge(w) {
		return
	}

	id := r.PathValue("id")
	entry, ok := s.knowledge.Get(id)
	if !ok {
		writeError(w, s.logger, http.StatusNotFound, "not_found", i18n.Sprintf("knowledge.not.found", id))
		return
	}
	writeJSON(w, s.logger, http.StatusOK, entry)
}

// handleKnowledgeDelete removes an entry's metadata record.
func (s *Server) handleKnowledgeDelete(w http.ResponseWriter, r *http.Request) {
	if !s.requireKnowledge(w) {
		return
	}

	id := r.PathValue("id")
	if !s.knowledge.Delete(id) {
		writeError(w, s.logger, http.StatusNotFound, "not_found", i18n.Sprintf("knowledge.not.found", id))
		return
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]string{
		"id":      id,
		"message": i18n.T("knowledge.deleted"),
	})
}

// handleKnowledgeSearch runs a similarity search.
func (s *Server) handleKnowledgeSearch(w http.ResponseWriter, r *http.Request) {
	if !s.requireKnowledge(w) {
		return
	}

	var req knowledgeSearchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", err))
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, s.logger, http.StatusBadRequest, "bad_request", i18n.Sprintf("api.bad.request", "query is required"))
		return
	}
	if req.MaxResults <= 0 {
		req.MaxResults = knowledge.DefaultTopK
	}

	matches, err := s.knowledge.Retrieve(r.Context(), req.Query, req.MaxResults)
	if err != nil {
		s.logger.Error("knowledge search failed", "error", err)
		writeError(w, s.logger, http.StatusInternalServerError, "internal", i18n.T("api.internal"))
		return
	}
	if matches == nil {
		matches = []knowledge.Match{}
	}
	writeJSON(w, s.logger, http.StatusOK, map[string]any{
		"count":   len(matches),
		"matches": matches,
	})
}

// handleKnowledgeStats aggregates entry metadata.
func (s *Server) handleKnowledgeStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireKnowledge(w) {
		return
	}
	writeJSON(w, s.logger, http.StatusOK, s.knowledge.Stats())
}
