// Package knowledge manages the retrieval-augmented knowledge base.
//
// The Index keeps entry metadata in memory and delegates segment storage
// and similarity search to a vector-backed Store. Entry content is split
// into overlapping segments before embedding so retrieval operates on
// coherent passages rather than whole documents.
//
// Known limitation, carried over deliberately: deleting an entry removes
// only the metadata record. Segment vectors stay behind in the vector
// store, so retrieval (and a later Bootstrap) can still surface content
// of a deleted entry.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alexzhang/converse/internal/chunk"
)

// Retrieval defaults.
const (
	// DefaultTopK is how many matches feed an augmented prompt.
	DefaultTopK = 3

	// DefaultMinScore is the similarity floor below which a match is
	// ignored.
	DefaultMinScore = 0.3

	// bootstrapListLimit bounds how many segments Bootstrap reads back.
	bootstrapListLimit = 1000

	// entryIDLength is the length of the opaque entry id.
	entryIDLength = 8

	// titlePreviewLength is used when restoring entries whose title was
	// not persisted.
	titlePreviewLength = 30
)

// augmentInstruction tells the model how to treat retrieved references.
const augmentInstruction = "Answer the user's question based on the reference material below. If the references are not sufficient, answer from your own knowledge, but make clear that it does not come from the references."

// SegmentStore is the embed/store/search capability the Index delegates
// to. Implemented by *Store; defined here so unit tests can fake it.
type SegmentStore interface {
	StoreSegments(ctx context.Context, segments []Segment) ([]string, error)
	Search(ctx context.Context, query string, maxResults int, minScore float64) ([]Match, error)
	ListAll(ctx context.Context, limit int32) ([]SegmentRow, error)
	ModelInfo() string
}

// Config tunes chunking and retrieval. Zero values use the defaults.
type Config struct {
	SegmentSize int
	Overlap     int
	TopK        int
	MinScore    float64
}

func (c *Config) applyDefaults() {
	if c.SegmentSize <= 0 {
		c.SegmentSize = chunk.DefaultSegmentSize
	}
	if c.Overlap <= 0 {
		c.Overlap = chunk.DefaultOverlap
	}
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.MinScore <= 0 {
		c.MinScore = DefaultMinScore
	}
}

// Index is the knowledge base front door: entry CRUD, retrieval, and
// prompt augmentation. Safe for concurrent use.
type Index struct {
	store  SegmentStore
	cfg    Config
	logger *slog.Logger

	entries sync.Map // entry id -> Entry
}

// NewIndex creates an Index over the given segment store.
func NewIndex(store SegmentStore, cfg Config, logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	return &Index{
		store:  store,
		cfg:    cfg,
		logger: logger,
	}
}

// Add chunks content, stores the embedded segments, records the entry
// metadata, and returns the new entry id. A storage failure propagates
// and leaves no metadata record behind.
func (idx *Index) Add(ctx context.Context, title, content string) (string, error) {
	entryID := uuid.NewString()[:entryIDLength]
	createdAt := time.Now()

	pieces := chunk.Split(content, idx.cfg.SegmentSize, idx.cfg.Overlap)
	segments := make([]Segment, len(pieces))
	for i, p := range pieces {
		segments[i] = Segment{
			Content:   p,
			Source:    entryID,
			Title:     title,
			CreatedAt: createdAt,
		}
	}

	segmentIDs, err := idx.store.StoreSegments(ctx, segments)
	if err != nil {
		return "", fmt.Errorf("failed to add knowledge %q: %w", title, err)
	}

	entry := Entry{
		ID:            entryID,
		Title:         title,
		ContentLength: len([]rune(content)),
		SegmentCount:  len(pieces),
		SegmentIDs:    segmentIDs,
		CreatedAt:     createdAt,
	}
	idx.entries.Store(entryID, entry)

	idx.logger.Info("knowledge added",
		"entry_id", entryID,
		"title", title,
		"segments", len(pieces),
	)
	return entryID, nil
}

// Retrieve returns the most relevant segments for query, capped at
// maxResults and filtered by the configured similarity floor. Order is
// whatever the vector store returns.
func (idx *Index) Retrieve(ctx context.Context, query string, maxResults int) ([]Match, error) {
	return idx.store.Search(ctx, query, maxResults, idx.cfg.MinScore)
}

// BuildAugmentedPrompt retrieves references for query and composes the
// augmented prompt. When nothing relevant is found, query is returned
// unchanged. A search failure propagates so the caller can fall back to
// the raw query.
func (idx *Index) BuildAugmentedPrompt(ctx context.Context, query string) (string, error) {
	matches, err := idx.Retrieve(ctx, query, idx.cfg.TopK)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return query, nil
	}

	var b strings.Builder
	b.WriteString(augmentInstruction)
	b.WriteString("\n\n[References]\n")
	for i, m := range matches {
		fmt.Fprintf(&b, "[%d] (relevance: %.2f)\n%s\n\n", i+1, m.Score, m.Content)
	}
	b.WriteString("[User question]\n")
	b.WriteString(query)

	idx.logger.Debug("augmented prompt built", "references", len(matches))
	return b.String(), nil
}

// Delete removes the entry's metadata record and reports whether one
// existed. Segment vectors are not purged from the vector store.
func (idx *Index) Delete(entryID string) bool {
	_, existed := idx.entries.LoadAndDelete(entryID)
	if existed {
		idx.logger.Info("knowledge deleted", "entry_id", entryID)
	}
	return existed
}

// Get returns the metadata record for an entry.
func (idx *Index) Get(entryID string) (Entry, bool) {
	v, ok := idx.entries.Load(entryID)
	if !ok {
		return Entry{}, false
	}
	return v.(Entry), true
}

// List returns all entries, newest first.
func (idx *Index) List() []Entry {
	var out []Entry
	idx.entries.Range(func(_, v any) bool {
		out = append(out, v.(Entry))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Stats aggregates the in-memory metadata.
func (idx *Index) Stats() Stats {
	s := Stats{EmbeddingModel: idx.store.ModelInfo()}
	idx.entries.Range(func(_, v any) bool {
		e := v.(Entry)
		s.TotalEntries++
		s.TotalSegments += e.SegmentCount
		s.TotalCharacters += int64(e.ContentLength)
		return true
	})
	return s
}

// Bootstrap rebuilds entry metadata from segments already in the vector
// store, grouped by source id. Run at startup; metadata is process-local
// and would otherwise be empty after a restart even though the vectors
// persist. Segment ids are not recoverable and stay empty.
func (idx *Index) Bootstrap(ctx context.Context) error {
	rows, err := idx.store.ListAll(ctx, bootstrapListLimit)
	if err != nil {
		return fmt.Errorf("failed to restore knowledge entries: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	bySource := make(map[string][]SegmentRow)
	for _, row := range rows {
		if row.Source == "" {
			continue
		}
		bySource[row.Source] = append(bySource[row.Source], row)
	}

	for source, segs := range bySource {
		totalChars := 0
		for _, seg := range segs {
			totalChars += len([]rune(seg.Content))
		}

		title := segs[0].Title
		if title == "" {
			preview := []rune(segs[0].Content)
			if len(preview) > titlePreviewLength {
				title = string(preview[:titlePreviewLength]) + "..."
			} else {
				title = string(preview)
			}
		}

		idx.entries.Store(source, Entry{
			ID:            source,
			Title:         title,
			ContentLength: totalChars,
			SegmentCount:  len(segs),
			CreatedAt:     segs[0].CreatedAt,
		})
	}

	idx.logger.Info("knowledge entries restored from vector store", "entries", len(bySource))
	return nil
}
