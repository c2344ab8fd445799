package knowledge

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGQuerier implements Querier against a pgvector-enabled PostgreSQL
// database. The segments table is created by db.Migrate.
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier creates a PGQuerier on the given pool. The pool must have
// pgvector types registered (see database.NewPool).
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

// InsertSegment persists one segment row.
func (q *PGQuerier) InsertSegment(ctx context.Context, row SegmentRow) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO segments (id, content, embedding, source, title, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		row.ID, row.Content, row.Embedding, row.Source, row.Title, row.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert segment %s: %w", row.ID, err)
	}
	return nil
}

// SearchSegments returns the limit nearest segments by cosine distance,
// most similar first.
func (q *PGQuerier) SearchSegments(ctx context.Context, embedding pgvector.Vector, limit int32) ([]SearchRow, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT id, content, source, title, created_at,
		        1 - (embedding <=> $1) AS similarity
		 FROM segments
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		embedding, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search segments: %w", err)
	}
	defer rows.Close()

	var out []SearchRow
	for rows.Next() {
		var r SearchRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Source, &r.Title, &r.CreatedAt, &r.Similarity); err != nil {
			return nil, fmt.Errorf("scan search row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate search rows: %w", err)
	}
	return out, nil
}

// ListSegments returns up to limit segments, newest first.
func (q *PGQuerier) ListSegments(ctx context.Context, limit int32) ([]SegmentRow, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT id, content, source, title, created_at
		 FROM segments
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list segments: %w", err)
	}
	defer rows.Close()

	var out []SegmentRow
	for rows.Next() {
		var r SegmentRow
		if err := rows.Scan(&r.ID, &r.Content, &r.Source, &r.Title, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan segment row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segment rows: %w", err)
	}
	return out, nil
}
