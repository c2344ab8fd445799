//go:build integration

package knowledge_test

import (
	"context"
	"testing"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/stretchr/testify/require"

	"github.com/alexzhang/converse/internal/knowledge"
	"github.com/alexzhang/converse/internal/testutil"
)

// unitVector returns a 768-dim unit vector with weight concentrated on
// the given axis, so cosine similarity between different axes is ~0.
func unitVector(axis int) pgvector.Vector {
	v := make([]float32, 768)
	v[axis] = 1
	return pgvector.NewVector(v)
}

func TestPGQuerier_InsertAndSearch(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	querier := knowledge.NewPGQuerier(db.Pool)
	now := time.Now().UTC()

	rows := []knowledge.SegmentRow{
		{ID: "seg-a", Content: "about cats", Embedding: unitVector(0), Source: "entry001", Title: "Cats", CreatedAt: now.Add(-2 * time.Minute)},
		{ID: "seg-b", Content: "about dogs", Embedding: unitVector(1), Source: "entry001", Title: "Cats", CreatedAt: now.Add(-time.Minute)},
		{ID: "seg-c", Content: "about fish", Embedding: unitVector(2), Source: "entry002", Title: "Fish", CreatedAt: now},
	}
	for _, row := range rows {
		require.NoError(t, querier.InsertSegment(ctx, row))
	}

	// Searching with the cats vector must rank seg-a first with
	// similarity ~1, the others near 0.
	results, err := querier.SearchSegments(ctx, unitVector(0), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	require.Equal(t, "seg-a", results[0].ID)
	require.InDelta(t, 1.0, results[0].Similarity, 0.01)
	require.Less(t, results[1].Similarity, 0.1)

	// Limit applies.
	results, err = querier.SearchSegments(ctx, unitVector(0), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestPGQuerier_ListSegments(t *testing.T) {
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	querier := knowledge.NewPGQuerier(db.Pool)
	now := time.Now().UTC()

	require.NoError(t, querier.InsertSegment(ctx, knowledge.SegmentRow{
		ID: "old", Content: "old content", Embedding: unitVector(0), Source: "entry001", CreatedAt: now.Add(-time.Hour),
	}))
	require.NoError(t, querier.InsertSegment(ctx, knowledge.SegmentRow{
		ID: "new", Content: "new content", Embedding: unitVector(1), Source: "entry002", CreatedAt: now,
	}))

	rows, err := querier.ListSegments(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "new", rows[0].ID, "expected newest first")

	rows, err = querier.ListSegments(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}
