// Package engine orchestrates conversations: fetch-or-create session,
// optional knowledge augmentation, history append and trim, then the
// completion capability (sync or streaming).
package engine

import (
	"context"
	"log/slog"

	"github.com/alexzhang/converse/internal/i18n"
	"github.com/alexzhang/converse/internal/session"
)

// Completer generates a reply for a message sequence.
type Completer interface {
	Complete(ctx context.Context, messages []session.Message) (string, error)
}

// StreamCompleter generates a reply incrementally, invoking onChunk for
// each text fragment, and returns the full text.
type StreamCompleter interface {
	CompleteStream(ctx context.Context, messages []session.Message, onChunk func(ctx context.Context, text string) error) (string, error)
}

// Augmenter composes a knowledge-augmented prompt for a query.
// Implemented by knowledge.Index.
type Augmenter interface {
	BuildAugmentedPrompt(ctx context.Context, query string) (string, error)
}

// Engine drives multi-turn and single-turn conversations.
type Engine struct {
	sessions  *session.Store
	completer Completer
	streamer  StreamCompleter // nil means streaming falls back to sync
	augmenter Augmenter       // nil disables knowledge augmentation
	logger    *slog.Logger
}

// New creates an Engine. streamer and augmenter are optional.
func New(sessions *session.Store, completer Completer, streamer StreamCompleter, augmenter Augmenter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		sessions:  sessions,
		completer: completer,
		streamer:  streamer,
		augmenter: augmenter,
		logger:    logger,
	}
}

// Chat runs one turn of a multi-turn conversation and returns the
// assistant reply. A completion failure is absorbed: the failed turn is
// not recorded in history and the returned text is a localized apology
// carrying the error detail.
func (e *Engine) Chat(ctx context.Context, sessionID, input string) string {
	history := e.prepare(ctx, sessionID, input)

	reply, err := e.completer.Complete(ctx, history)
	if err != nil {
		e.logger.Error("completion failed", "session_id", sessionID, "error", err)
		return i18n.Sprintf("chat.apology", err)
	}

	e.sessions.Append(sessionID, session.Message{Role: session.RoleAssistant, Content: reply})
	return reply
}

// ChatStream runs one turn of a conversation, forwarding partial output
// to sink. The sink receives chunks in arrival order followed by
// exactly one terminal signal. On success the full reply is appended to
// history; on error nothing is appended. Without a streaming capability
// the whole reply is delivered as a single chunk.
func (e *Engine) ChatStream(ctx context.Context, sessionID, input string, sink Sink) {
	guard := newGuardedSink(sink)
	history := e.prepare(ctx, sessionID, input)

	var reply string
	var err error
	if e.streamer != nil {
		reply, err = e.streamer.CompleteStream(ctx, history, func(_ context.Context, text string) error {
			return guard.Chunk(text)
		})
	} else {
		reply, err = e.completer.Complete(ctx, history)
		if err == nil {
			if chunkErr := guard.Chunk(reply); chunkErr != nil {
				err = chunkErr
			}
		}
	}

	if err != nil {
		e.logger.Error("streaming completion failed", "session_id", sessionID, "error", err)
		guard.Error(err)
		return
	}

	e.sessions.Append(sessionID, session.Message{Role: session.RoleAssistant, Content: reply})
	guard.Done()
}

// Ask answers a single-turn question with the default persona and no
// session state. A model failure yields a localized degraded-mode
// reply.
func (e *Engine) Ask(ctx context.Context, input string) string {
	return e.AskWithContext(ctx, session.DefaultSystemPrompt, input)
}

// AskWithContext answers a single-turn question under a caller-supplied
// system prompt.
func (e *Engine) AskWithContext(ctx context.Context, systemPrompt, input string) string {
	messages := []session.Message{
		{Role: session.RoleSystem, Content: systemPrompt},
		{Role: session.RoleUser, Content: input},
	}

	reply, err := e.completer.Complete(ctx, messages)
	if err != nil {
		e.logger.Error("single-turn completion failed", "error", err)
		return i18n.Sprintf("chat.degraded", err)
	}
	return reply
}

// Sessions exposes the underlying session store for info, clear, and
// RAG-flag operations.
func (e *Engine) Sessions() *session.Store {
	return e.sessions
}

// prepare touches the session, applies best-effort augmentation, and
// appends the user turn, returning the trimmed history snapshot.
func (e *Engine) prepare(ctx context.Context, sessionID, input string) []session.Message {
	e.sessions.Touch(sessionID)

	if e.augmenter != nil && e.sessions.RagEnabled(sessionID) {
		augmented, err := e.augmenter.BuildAugmentedPrompt(ctx, input)
		if err != nil {
			// Augmentation is best effort: proceed with the raw input.
			e.logger.Warn("augmentation failed, using raw input", "session_id", sessionID, "error", err)
		} else {
			input = augmented
		}
	}

	return e.sessions.Append(sessionID, session.Message{Role: session.RoleUser, Content: input})
}
