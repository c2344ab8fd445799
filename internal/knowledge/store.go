package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// searchTimeout bounds vector search queries so a slow database cannot
// stall request handling.
const searchTimeout = 10 * time.Second

// SegmentRow is the persisted shape of a segment.
type SegmentRow struct {
	ID        string
	Content   string
	Embedding pgvector.Vector
	Source    string
	Title     string
	CreatedAt time.Time
}

// SearchRow is one similarity-search result row.
type SearchRow struct {
	SegmentRow
	Similarity float64
}

// Querier defines the database operations Store needs. Defined by the
// consumer so tests can substitute an in-memory implementation; the
// production implementation is PGQuerier.
type Querier interface {
	InsertSegment(ctx context.Context, row SegmentRow) error
	SearchSegments(ctx context.Context, embedding pgvector.Vector, limit int32) ([]SearchRow, error)
	ListSegments(ctx context.Context, limit int32) ([]SegmentRow, error)
}

// Store embeds segments and persists them in a vector store for
// similarity search. Safe for concurrent use.
type Store struct {
	queries   Querier
	embedder  ai.Embedder
	modelInfo string
	logger    *slog.Logger
}

// NewStore creates a Store. modelInfo is a human-readable description of
// the embedding model, surfaced in stats.
func NewStore(querier Querier, embedder ai.Embedder, modelInfo string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		queries:   querier,
		embedder:  embedder,
		modelInfo: modelInfo,
		logger:    logger,
	}
}

// StoreSegments embeds all segments in one batch and persists them.
// Returns the generated segment ids. Any failure propagates; a segment
// batch that failed to embed is not partially recorded as stored.
func (s *Store) StoreSegments(ctx context.Context, segments []Segment) ([]string, error) {
	if len(segments) == 0 {
		return nil, nil
	}

	input := make([]*ai.Document, len(segments))
	for i, seg := range segments {
		input[i] = &ai.Document{
			Content: []*ai.Part{ai.NewTextPart(seg.Content)},
		}
	}

	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to embed segments: %w", err)
	}
	if len(resp.Embeddings) != len(segments) {
		return nil, fmt.Errorf("embedder returned %d embeddings for %d segments", len(resp.Embeddings), len(segments))
	}

	ids := make([]string, 0, len(segments))
	for i, seg := range segments {
		if len(resp.Embeddings[i].Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding returned for segment %d of %q", i, seg.Source)
		}

		row := SegmentRow{
			ID:        uuid.NewString(),
			Content:   seg.Content,
			Embedding: pgvector.NewVector(resp.Embeddings[i].Embedding),
			Source:    seg.Source,
			Title:     seg.Title,
			CreatedAt: seg.CreatedAt,
		}
		if err := s.queries.InsertSegment(ctx, row); err != nil {
			return nil, fmt.Errorf("failed to store segment %d of %q: %w", i, seg.Source, err)
		}
		ids = append(ids, row.ID)
	}

	s.logger.Debug("stored segments", "count", len(ids))
	return ids, nil
}

// Search embeds the query and returns the nearest segments with
// similarity at or above minScore, ordered as the vector store returns
// them (descending similarity).
func (s *Store) Search(ctx context.Context, query string, maxResults int, minScore float64) ([]Match, error) {
	queryCtx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	resp, err := s.embedder.Embed(queryCtx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(query)}},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, errors.New("empty embedding returned for query")
	}

	rows, err := s.queries.SearchSegments(queryCtx, pgvector.NewVector(resp.Embeddings[0].Embedding), int32(maxResults)) // #nosec G115 -- maxResults is a small config value
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	matches := make([]Match, 0, len(rows))
	for _, row := range rows {
		if row.Similarity < minScore {
			continue
		}
		matches = append(matches, Match{
			Content: row.Content,
			Score:   row.Similarity,
			Source:  row.Source,
		})
	}
	return matches, nil
}

// ListAll returns up to limit stored segments. Used by the index to
// rebuild entry metadata at startup.
func (s *Store) ListAll(ctx context.Context, limit int32) ([]SegmentRow, error) {
	rows, err := s.queries.ListSegments(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}
	return rows, nil
}

// ModelInfo describes the embedding model behind this store.
func (s *Store) ModelInfo() string {
	return s.modelInfo
}
