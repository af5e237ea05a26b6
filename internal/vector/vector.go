// Package vector implements the dense-vector document index backed by
// PostgreSQL + pgvector.
//
// The index stores pre-embedded documents and answers top-K cosine
// similarity queries. Embedding generation lives in the embed package; the
// index only receives finished vectors, which keeps its failure modes
// limited to the database.
package vector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// SourceTypeDocument is the default source type for ingested content.
const SourceTypeDocument = "document"

// MaxTopK caps the number of results a single query may request.
const MaxTopK = 100

// Sentinel errors for index operations.
var (
	// ErrUnavailable indicates the backing database failed or is unreachable.
	ErrUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch indicates a vector whose length does not match
	// the provisioned column width.
	ErrDimensionMismatch = errors.New("vector dimensionality mismatch")
)

// Document is a unit of indexed content.
type Document struct {
	ID         string
	Content    string
	SourceType string
	CreatedAt  time.Time
}

// Hit is a single similarity search result.
type Hit struct {
	ID         string
	Content    string
	SourceType string
	Score      float64
}

// Querier defines the database operations the index depends on.
// Defined by the consumer so tests can substitute a mock.
type Querier interface {
	// UpsertDocument inserts a document or replaces an existing one by ID.
	UpsertDocument(ctx context.Context, doc Document, embedding pgvector.Vector) error

	// SearchDocuments returns up to limit hits ordered by cosine
	// similarity descending.
	SearchDocuments(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Hit, error)

	// CountDocuments counts all indexed documents.
	CountDocuments(ctx context.Context) (int64, error)
}

// Index answers similarity queries over stored document vectors.
//
// Index is safe for concurrent use by multiple goroutines.
type Index struct {
	queries Querier
	dims    int
	logger  *slog.Logger
}

// New creates an Index backed by a pgx connection pool.
func New(pool *pgxpool.Pool, dims int, logger *slog.Logger) (*Index, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return NewWithQuerier(&pgQuerier{pool: pool}, dims, logger)
}

// NewWithQuerier creates an Index with a custom Querier. Used by tests.
func NewWithQuerier(querier Querier, dims int, logger *slog.Logger) (*Index, error) {
	if querier == nil {
		return nil, errors.New("querier is required")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("dims must be positive, got %d", dims)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{queries: querier, dims: dims, logger: logger}, nil
}

// Upsert stores a document and its embedding, replacing any existing
// document with the same ID.
func (ix *Index) Upsert(ctx context.Context, doc Document, embedding []float32) error {
	if doc.ID == "" {
		return errors.New("document ID is required")
	}
	if doc.Content == "" {
		return errors.New("document content is required")
	}
	if len(embedding) != ix.dims {
		return fmt.Errorf("%w: index expects %d, got %d", ErrDimensionMismatch, ix.dims, len(embedding))
	}
	if doc.SourceType == "" {
		doc.SourceType = SourceTypeDocument
	}

	if err := ix.queries.UpsertDocument(ctx, doc, pgvector.NewVector(embedding)); err != nil {
		return fmt.Errorf("%w: upserting document %q: %w", ErrUnavailable, doc.ID, err)
	}

	ix.logger.Debug("upserted document", "id", doc.ID, "source_type", doc.SourceType, "content_length", len(doc.Content))
	return nil
}

// Query returns up to topK documents ordered by cosine similarity to the
// given embedding, highest first. topK is clamped to [1, MaxTopK].
func (ix *Index) Query(ctx context.Context, embedding []float32, topK int) ([]Hit, error) {
	if len(embedding) != ix.dims {
		return nil, fmt.Errorf("%w: index expects %d, got %d", ErrDimensionMismatch, ix.dims, len(embedding))
	}
	if topK <= 0 {
		topK = 5
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	hits, err := ix.queries.SearchDocuments(ctx, pgvector.NewVector(embedding), int32(topK))
	if err != nil {
		return nil, fmt.Errorf("%w: searching documents: %w", ErrUnavailable, err)
	}
	return hits, nil
}

// Count returns the number of indexed documents.
func (ix *Index) Count(ctx context.Context) (int, error) {
	count, err := ix.queries.CountDocuments(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: counting documents: %w", ErrUnavailable, err)
	}
	if count > math.MaxInt {
		return 0, fmt.Errorf("document count %d exceeds platform int capacity", count)
	}
	return int(count), nil
}
