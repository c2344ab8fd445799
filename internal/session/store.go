// Package session holds per-conversation message history in memory.
//
// A Store maps opaque session ids to ordered message sequences. Sessions
// are created lazily on first use, re-armed on every access, and reclaimed
// by a background sweep under TTL and capacity pressure. The Store is safe
// for concurrent use by multiple goroutines.
package session

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation turn. Immutable once created.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// DefaultSystemPrompt seeds every new session as its first message.
const DefaultSystemPrompt = "You are a friendly, professional AI assistant who helps users solve all kinds of problems. When reference material is provided, answer based on the references first."

// Default lifecycle parameters, matching Config zero-value behavior.
const (
	DefaultMaxHistory    = 20
	DefaultTTL           = 30 * time.Minute
	DefaultSweepInterval = 5 * time.Minute
	DefaultMaxSessions   = 1000
)

// Config controls session lifecycle.
type Config struct {
	// SystemPrompt seeds new sessions. Empty uses DefaultSystemPrompt.
	SystemPrompt string

	// MaxHistory caps messages kept per session. The system prompt is
	// always retained; the oldest non-system messages are dropped.
	MaxHistory int

	// TTL is the maximum idle duration before a session is evictable.
	TTL time.Duration

	// SweepInterval is how often the background sweep runs.
	SweepInterval time.Duration

	// MaxSessions caps the number of live sessions; the sweep removes the
	// least recently accessed sessions past the cap.
	MaxSessions int
}

func (c *Config) applyDefaults() {
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.MaxHistory <= 0 {
		c.MaxHistory = DefaultMaxHistory
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = DefaultMaxSessions
	}
}

// state is the live record for one session. The messages slice is guarded
// by mu; lastAccess is atomic so the sweep can read it without locking.
type state struct {
	mu         sync.Mutex
	messages   []Message
	createdAt  time.Time
	lastAccess atomic.Int64 // unix nanos
}

func (st *state) touch(now time.Time) {
	st.lastAccess.Store(now.UnixNano())
}

// Info describes a session without exposing its history.
type Info struct {
	MessageCount int
	CreatedAt    time.Time
	LastAccess   time.Time
}

// Store is a concurrent in-memory session store with TTL and capacity
// eviction. Create with New and release with Close.
type Store struct {
	cfg    Config
	logger *slog.Logger

	sessions   sync.Map // session id -> *state
	ragEnabled sync.Map // session id -> bool

	now func() time.Time // replaced in tests

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a Store and starts its background sweep. Callers must Close
// the store to stop the sweep goroutine.
func New(cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	s := &Store{
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		done:   make(chan struct{}),
	}

	s.wg.Add(1)
	go s.sweepLoop()

	logger.Info("session store started",
		"ttl", cfg.TTL,
		"sweep_interval", cfg.SweepInterval,
		"max_sessions", cfg.MaxSessions,
		"max_history", cfg.MaxHistory,
	)
	return s
}

// Close stops the background sweep. Idempotent.
func (s *Store) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	return nil
}

// getOrCreate returns the state for id, creating it atomically on first
// access. At most one goroutine wins the creation race; losers adopt the
// winner's state.
func (s *Store) getOrCreate(id string) *state {
	if st, ok := s.sessions.Load(id); ok {
		return st.(*state)
	}

	now := s.now()
	fresh := &state{
		messages:  []Message{{Role: RoleSystem, Content: s.cfg.SystemPrompt}},
		createdAt: now,
	}
	fresh.touch(now)

	actual, loaded := s.sessions.LoadOrStore(id, fresh)
	if !loaded {
		s.logger.Debug("created session", "session_id", id)
	}
	return actual.(*state)
}

// Append creates the session if needed, appends msgs, enforces the history
// cap, and returns a snapshot of the resulting history.
func (s *Store) Append(id string, msgs ...Message) []Message {
	st := s.getOrCreate(id)
	st.touch(s.now())

	st.mu.Lock()
	defer st.mu.Unlock()

	st.messages = append(st.messages, msgs...)
	if len(st.messages) > s.cfg.MaxHistory {
		trimmed := make([]Message, 0, s.cfg.MaxHistory)
		trimmed = append(trimmed, st.messages[0])
		trimmed = append(trimmed, st.messages[len(st.messages)-(s.cfg.MaxHistory-1):]...)
		st.messages = trimmed
	}

	out := make([]Message, len(st.messages))
	copy(out, st.messages)
	return out
}

// Touch creates the session if needed and re-arms its TTL.
func (s *Store) Touch(id string) {
	s.getOrCreate(id).touch(s.now())
}

// History returns a copy of the session's messages, or nil if the session
// does not exist. Re-arms the TTL.
func (s *Store) History(id string) []Message {
	v, ok := s.sessions.Load(id)
	if !ok {
		return nil
	}
	st := v.(*state)
	st.touch(s.now())

	st.mu.Lock()
	defer st.mu.Unlock()
	out := make([]Message, len(st.messages))
	copy(out, st.messages)
	return out
}

// Exists reports whether the session is live. Does not re-arm the TTL.
func (s *Store) Exists(id string) bool {
	_, ok := s.sessions.Load(id)
	return ok
}

// Stat returns lifecycle information for a session.
func (s *Store) Stat(id string) (Info, bool) {
	v, ok := s.sessions.Load(id)
	if !ok {
		return Info{}, false
	}
	st := v.(*state)

	st.mu.Lock()
	count := len(st.messages)
	st.mu.Unlock()

	return Info{
		MessageCount: count,
		CreatedAt:    st.createdAt,
		LastAccess:   time.Unix(0, st.lastAccess.Load()),
	}, true
}

// Clear removes the session and its RAG flag. Clearing a session that does
// not exist is a no-op.
func (s *Store) Clear(id string) {
	s.sessions.Delete(id)
	s.ragEnabled.Delete(id)
	s.logger.Debug("cleared session", "session_id", id)
}

// IDs returns the ids of all live sessions.
func (s *Store) IDs() []string {
	var ids []string
	s.sessions.Range(func(k, _ any) bool {
		ids = append(ids, k.(string))
		return true
	})
	return ids
}

// Count returns the number of live sessions.
func (s *Store) Count() int {
	n := 0
	s.sessions.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// SetRagEnabled overrides knowledge augmentation for a session. The flag
// lives independently of the session itself, so it can be set before the
// first message arrives.
func (s *Store) SetRagEnabled(id string, enabled bool) {
	s.ragEnabled.Store(id, enabled)
	s.logger.Debug("session rag flag", "session_id", id, "enabled", enabled)
}

// RagEnabled reports whether augmentation is enabled for a session.
// Defaults to true when never set.
func (s *Store) RagEnabled(id string) bool {
	v, ok := s.ragEnabled.Load(id)
	if !ok {
		return true
	}
	return v.(bool)
}

// sweepLoop runs sweep on a fixed interval until Close.
func (s *Store) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep removes sessions idle past the TTL, then removes the least
// recently accessed sessions while the count exceeds MaxSessions. Entries
// are removed one at a time; a session touched concurrently with its own
// eviction check may survive or not, either order is acceptable.
func (s *Store) sweep() {
	now := s.now()
	cutoff := now.Add(-s.cfg.TTL).UnixNano()

	before := s.Count()

	s.sessions.Range(func(k, v any) bool {
		if v.(*state).lastAccess.Load() < cutoff {
			s.sessions.Delete(k)
			s.ragEnabled.Delete(k)
		}
		return true
	})

	// Capacity pressure: drop the oldest survivors past the cap.
	if excess := s.Count() - s.cfg.MaxSessions; excess > 0 {
		type aged struct {
			id   string
			seen int64
		}
		var all []aged
		s.sessions.Range(func(k, v any) bool {
			all = append(all, aged{k.(string), v.(*state).lastAccess.Load()})
			return true
		})
		sort.Slice(all, func(i, j int) bool { return all[i].seen < all[j].seen })
		for i := 0; i < excess && i < len(all); i++ {
			s.sessions.Delete(all[i].id)
			s.ragEnabled.Delete(all[i].id)
		}
	}

	if after := s.Count(); after != before {
		s.logger.Info("session sweep", "before", before, "after", after)
	}
}
