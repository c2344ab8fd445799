package engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alexzhang/converse/internal/session"
	"github.com/alexzhang/converse/internal/testutil"
)

// completerFunc adapts a function to Completer.
type completerFunc func(ctx context.Context, messages []session.Message) (string, error)

func (f completerFunc) Complete(ctx context.Context, messages []session.Message) (string, error) {
	return f(ctx, messages)
}

// streamerFunc adapts a function to StreamCompleter.
type streamerFunc func(ctx context.Context, messages []session.Message, onChunk func(ctx context.Context, text string) error) (string, error)

func (f streamerFunc) CompleteStream(ctx context.Context, messages []session.Message, onChunk func(ctx context.Context, text string) error) (string, error) {
	return f(ctx, messages, onChunk)
}

// augmenterFunc adapts a function to Augmenter.
type augmenterFunc func(ctx context.Context, query string) (string, error)

func (f augmenterFunc) BuildAugmentedPrompt(ctx context.Context, query string) (string, error) {
	return f(ctx, query)
}

// recordingSink captures everything delivered to it.
type recordingSink struct {
	chunks   []string
	chunkErr error // returned from Chunk when set
	done     int
	errs     []error
}

func (r *recordingSink) Chunk(text string) error {
	r.chunks = append(r.chunks, text)
	return r.chunkErr
}

func (r *recordingSink) Done() { r.done++ }

func (r *recordingSink) Error(err error) { r.errs = append(r.errs, err) }

func newTestStore(t *testing.T) *session.Store {
	t.Helper()
	s := session.New(session.Config{}, testutil.DiscardLogger())
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func echoCompleter(reply string) completerFunc {
	return func(ctx context.Context, messages []session.Message) (string, error) {
		return reply, nil
	}
}

func TestChat_Success(t *testing.T) {
	store := newTestStore(t)
	eng := New(store, echoCompleter("hello there"), nil, nil, testutil.DiscardLogger())

	reply := eng.Chat(context.Background(), "sess-1", "hi")
	if reply != "hello there" {
		t.Fatalf("unexpected reply: %q", reply)
	}

	history := store.History("sess-1")
	if len(history) != 3 {
		t.Fatalf("expected system+user+assistant, got %d messages", len(history))
	}
	if history[0].Role != session.RoleSystem {
		t.Errorf("first message should be system, got %s", history[0].Role)
	}
	if history[1].Role != session.RoleUser || history[1].Content != "hi" {
		t.Errorf("user turn wrong: %+v", history[1])
	}
	if history[2].Role != session.RoleAssistant || history[2].Content != "hello there" {
		t.Errorf("assistant turn wrong: %+v", history[2])
	}
}

func TestChat_CompletionFailure(t *testing.T) {
	store := newTestStore(t)
	failing := completerFunc(func(ctx context.Context, messages []session.Message) (string, error) {
		return "", errors.New("model exploded")
	})
	eng := New(store, failing, nil, nil, testutil.DiscardLogger())

	reply := eng.Chat(context.Background(), "sess-1", "hi")
	if !strings.Contains(reply, "model exploded") {
		t.Errorf("apology should carry the error detail, got %q", reply)
	}

	// The failed turn leaves the user message but no assistant reply.
	history := store.History("sess-1")
	if len(history) != 2 {
		t.Fatalf("expected system+user only, got %d messages", len(history))
	}
	if history[len(history)-1].Role != session.RoleUser {
		t.Errorf("no assistant message should be recorded after a failure")
	}
}

func TestChat_Augmentation(t *testing.T) {
	store := newTestStore(t)

	var seen []session.Message
	completer := completerFunc(func(ctx context.Context, messages []session.Message) (string, error) {
		seen = messages
		return "ok", nil
	})
	augmenter := augmenterFunc(func(ctx context.Context, query string) (string, error) {
		return "[References]\nGo facts\n[User question]\n" + query, nil
	})
	eng := New(store, completer, nil, augmenter, testutil.DiscardLogger())

	eng.Chat(context.Background(), "sess-1", "when was Go released?")

	userTurn := seen[len(seen)-1]
	if !strings.Contains(userTurn.Content, "[References]") {
		t.Errorf("completion should receive the augmented prompt, got %q", userTurn.Content)
	}
	if !strings.Contains(userTurn.Content, "when was Go released?") {
		t.Errorf("augmented prompt must keep the original query, got %q", userTurn.Content)
	}
}

func TestChat_AugmentationFailureFallsBack(t *testing.T) {
	store := newTestStore(t)

	var seen []session.Message
	completer := completerFunc(func(ctx context.Context, messages []session.Message) (string, error) {
		seen = messages
		return "ok", nil
	})
	augmenter := augmenterFunc(func(ctx context.Context, query string) (string, error) {
		return "", errors.New("vector store down")
	})
	eng := New(store, completer, nil, augmenter, testutil.DiscardLogger())

	reply := eng.Chat(context.Background(), "sess-1", "plain question")
	if reply != "ok" {
		t.Fatalf("augmentation failure must not surface, got %q", reply)
	}
	if seen[len(seen)-1].Content != "plain question" {
		t.Errorf("expected raw input after augmentation failure, got %q", seen[len(seen)-1].Content)
	}
}

func TestChat_RagDisabledSkipsAugmenter(t *testing.T) {
	store := newTestStore(t)

	augmenterCalls := 0
	augmenter := augmenterFunc(func(ctx context.Context, query string) (string, error) {
		augmenterCalls++
		return query, nil
	})
	eng := New(store, echoCompleter("ok"), nil, augmenter, testutil.DiscardLogger())

	store.SetRagEnabled("sess-1", false)
	eng.Chat(context.Background(), "sess-1", "hi")
	if augmenterCalls != 0 {
		t.Errorf("augmenter should not run when RAG is disabled for the session")
	}

	// Default is enabled for other sessions.
	eng.Chat(context.Background(), "sess-2", "hi")
	if augmenterCalls != 1 {
		t.Errorf("augmenter should run for sessions with the default flag")
	}
}

func TestChatStream_Success(t *testing.T) {
	store := newTestStore(t)
	streamer := streamerFunc(func(ctx context.Context, messages []session.Message, onChunk func(ctx context.Context, text string) error) (string, error) {
		for _, part := range []string{"Hel", "lo ", "world"} {
			if err := onChunk(ctx, part); err != nil {
				return "", err
			}
		}
		return "Hello world", nil
	})
	eng := New(store, echoCompleter("unused"), streamer, nil, testutil.DiscardLogger())

	sink := &recordingSink{}
	eng.ChatStream(context.Background(), "sess-1", "hi", sink)

	if got := strings.Join(sink.chunks, ""); got != "Hello world" {
		t.Errorf("chunks out of order or missing: %q", got)
	}
	if sink.done != 1 {
		t.Errorf("expected exactly one Done, got %d", sink.done)
	}
	if len(sink.errs) != 0 {
		t.Errorf("unexpected error signals: %v", sink.errs)
	}

	history := store.History("sess-1")
	if history[len(history)-1].Content != "Hello world" {
		t.Errorf("full reply should be appended to history")
	}
}

func TestChatStream_Error(t *testing.T) {
	store := newTestStore(t)
	streamer := streamerFunc(func(ctx context.Context, messages []session.Message, onChunk func(ctx context.Context, text string) error) (string, error) {
		_ = onChunk(ctx, "partial")
		return "", errors.New("connection reset")
	})
	eng := New(store, echoCompleter("unused"), streamer, nil, testutil.DiscardLogger())

	sink := &recordingSink{}
	eng.ChatStream(context.Background(), "sess-1", "hi", sink)

	if sink.done != 0 {
		t.Errorf("Done must not fire after an error")
	}
	if len(sink.errs) != 1 {
		t.Fatalf("expected exactly one Error, got %d", len(sink.errs))
	}

	history := store.History("sess-1")
	if history[len(history)-1].Role != session.RoleUser {
		t.Errorf("failed stream must not append an assistant message")
	}
}

func TestChatStream_SinkAbort(t *testing.T) {
	store := newTestStore(t)
	streamer := streamerFunc(func(ctx context.Context, messages []session.Message, onChunk func(ctx context.Context, text string) error) (string, error) {
		for _, part := range []string{"a", "b", "c"} {
			if err := onChunk(ctx, part); err != nil {
				return "", err
			}
		}
		return "abc", nil
	})
	eng := New(store, echoCompleter("unused"), streamer, nil, testutil.DiscardLogger())

	sink := &recordingSink{chunkErr: errors.New("client went away")}
	eng.ChatStream(context.Background(), "sess-1", "hi", sink)

	if sink.done != 0 || len(sink.errs) != 1 {
		t.Errorf("sink abort should terminate with a single error, got done=%d errs=%d", sink.done, len(sink.errs))
	}
}

func TestChatStream_FallbackWithoutStreamer(t *testing.T) {
	store := newTestStore(t)
	eng := New(store, echoCompleter("whole reply"), nil, nil, testutil.DiscardLogger())

	sink := &recordingSink{}
	eng.ChatStream(context.Background(), "sess-1", "hi", sink)

	if len(sink.chunks) != 1 || sink.chunks[0] != "whole reply" {
		t.Errorf("fallback should deliver the reply as one chunk, got %v", sink.chunks)
	}
	if sink.done != 1 || len(sink.errs) != 0 {
		t.Errorf("fallback should end with Done, got done=%d errs=%v", sink.done, sink.errs)
	}
}

func TestGuardedSink_SingleTerminal(t *testing.T) {
	sink := &recordingSink{}
	guard := newGuardedSink(sink)

	if err := guard.Chunk("a"); err != nil {
		t.Fatalf("chunk before terminal failed: %v", err)
	}
	guard.Done()
	guard.Done()
	guard.Error(errors.New("late"))

	if sink.done != 1 {
		t.Errorf("expected one Done, got %d", sink.done)
	}
	if len(sink.errs) != 0 {
		t.Errorf("Error after Done must be dropped, got %v", sink.errs)
	}

	if err := guard.Chunk("b"); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("chunk after terminal should fail with ErrStreamClosed, got %v", err)
	}
	if len(sink.chunks) != 1 {
		t.Errorf("late chunk must not reach the sink: %v", sink.chunks)
	}
}

func TestAsk(t *testing.T) {
	store := newTestStore(t)

	var seen []session.Message
	completer := completerFunc(func(ctx context.Context, messages []session.Message) (string, error) {
		seen = messages
		return "42", nil
	})
	eng := New(store, completer, nil, nil, testutil.DiscardLogger())

	reply := eng.Ask(context.Background(), "meaning of life?")
	if reply != "42" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if len(seen) != 2 || seen[0].Role != session.RoleSystem || seen[1].Role != session.RoleUser {
		t.Errorf("single-turn should send system+user, got %+v", seen)
	}

	// Single-turn chat leaves no session behind.
	if store.Count() != 0 {
		t.Errorf("Ask must not create sessions, store has %d", store.Count())
	}
}

func TestAskWithContext_Failure(t *testing.T) {
	store := newTestStore(t)
	failing := completerFunc(func(ctx context.Context, messages []session.Message) (string, error) {
		return "", errors.New("quota exceeded")
	})
	eng := New(store, failing, nil, nil, testutil.DiscardLogger())

	reply := eng.AskWithContext(context.Background(), "You are terse.", "hi")
	if !strings.Contains(reply, "quota exceeded") {
		t.Errorf("degraded reply should carry the error detail, got %q", reply)
	}
}
