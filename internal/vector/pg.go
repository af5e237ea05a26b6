package vector

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// pgQuerier is the production Querier backed by PostgreSQL + pgvector.
type pgQuerier struct {
	pool *pgxpool.Pool
}

func (q *pgQuerier) UpsertDocument(ctx context.Context, doc Document, embedding pgvector.Vector) error {
	_, err := q.pool.Exec(ctx,
		`INSERT INTO documents (id, content, source_type, embedding)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE
		 SET content = EXCLUDED.content,
		     source_type = EXCLUDED.source_type,
		     embedding = EXCLUDED.embedding,
		     updated_at = now()`,
		doc.ID, doc.Content, doc.SourceType, embedding,
	)
	return err
}

func (q *pgQuerier) SearchDocuments(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Hit, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT id, content, source_type, 1 - (embedding <=> $1) AS similarity
		 FROM documents
		 ORDER BY embedding <=> $1
		 LIMIT $2`,
		embedding, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ID, &h.Content, &h.SourceType, &h.Score); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating hits: %w", err)
	}
	return hits, nil
}

func (q *pgQuerier) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	if err := q.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
