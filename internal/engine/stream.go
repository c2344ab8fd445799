package engine

import (
	"errors"
	"sync"
)

// ErrStreamClosed is returned to a producer that keeps sending chunks
// after the stream has terminated.
var ErrStreamClosed = errors.New("stream already terminated")

// Sink receives streamed conversation output. Chunk is called zero or
// more times in arrival order, then exactly one of Done or Error.
type Sink interface {
	// Chunk delivers one partial text fragment. Returning an error
	// aborts generation.
	Chunk(text string) error

	// Done signals successful end of stream.
	Done()

	// Error signals abnormal termination.
	Error(err error)
}

// guardedSink wraps a Sink and enforces the terminal contract: after
// the first Done or Error, further terminal signals are dropped and
// further chunks are rejected. The completion capability invokes its
// callbacks from its own goroutine, so the guard is locked.
type guardedSink struct {
	sink Sink

	mu         sync.Mutex
	terminated bool
}

func newGuardedSink(sink Sink) *guardedSink {
	return &guardedSink{sink: sink}
}

func (g *guardedSink) Chunk(text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.terminated {
		return ErrStreamClosed
	}
	return g.sink.Chunk(text)
}

func (g *guardedSink) Done() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.terminated {
		return
	}
	g.terminated = true
	g.sink.Done()
}

func (g *guardedSink) Error(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.terminated {
		return
	}
	g.terminated = true
	g.sink.Error(err)
}
