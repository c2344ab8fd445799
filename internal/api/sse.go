package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// sseWriter streams Server-Sent Events. Events carry JSON payloads:
//
//	event: chunk  data: {"content": "..."}
//	event: done   data: {}
//	event: error  data: {"message": "..."}
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) writeEvent(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("write %s event: %w", event, err)
	}
	s.flusher.Flush()
	return nil
}

// sseSink adapts an sseWriter to engine.Sink.
type sseSink struct {
	sw     *sseWriter
	logger *slog.Logger
}

func (s *sseSink) Chunk(text string) error {
	return s.sw.writeEvent("chunk", map[string]string{"content": text})
}

func (s *sseSink) Done() {
	if err := s.sw.writeEvent("done", struct{}{}); err != nil {
		s.logger.Debug("failed to write done event", "error", err)
	}
}

func (s *sseSink) Error(err error) {
	if werr := s.sw.writeEvent("error", map[string]string{"message": err.Error()}); werr != nil {
		s.logger.Debug("failed to write error event", "error", werr)
	}
}
