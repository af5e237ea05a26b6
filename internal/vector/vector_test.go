package vector

import (
	"context"
	"errors"
	"testing"

	"github.com/pgvector/pgvector-go"
)

// mockQuerier implements Querier for testing
type mockQuerier struct {
	upsertErr error
	searchErr error
	countErr  error

	searchResults []Hit
	countResult   int64

	upsertCalls int
	searchCalls int
	lastDoc     Document
	lastLimit   int32
}

func (m *mockQuerier) UpsertDocument(ctx context.Context, doc Document, embedding pgvector.Vector) error {
	m.upsertCalls++
	m.lastDoc = doc
	return m.upsertErr
}

func (m *mockQuerier) SearchDocuments(ctx context.Context, embedding pgvector.Vector, limit int32) ([]Hit, error) {
	m.searchCalls++
	m.lastLimit = limit
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.searchResults, nil
}

func (m *mockQuerier) CountDocuments(ctx context.Context) (int64, error) {
	if m.countErr != nil {
		return 0, m.countErr
	}
	return m.countResult, nil
}

func testEmbedding(dims int) []float32 {
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = float32(i) / float32(dims)
	}
	return vec
}

func TestNewWithQuerier(t *testing.T) {
	if _, err := NewWithQuerier(nil, 3, nil); err == nil {
		t.Error("expected error for nil querier")
	}
	if _, err := NewWithQuerier(&mockQuerier{}, 0, nil); err == nil {
		t.Error("expected error for zero dims")
	}
	if _, err := NewWithQuerier(&mockQuerier{}, 3, nil); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()

	t.Run("stores document with default source type", func(t *testing.T) {
		mock := &mockQuerier{}
		ix, _ := NewWithQuerier(mock, 3, nil)

		doc := Document{ID: "doc-1", Content: "some content"}
		if err := ix.Upsert(ctx, doc, testEmbedding(3)); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if mock.upsertCalls != 1 {
			t.Errorf("upsert called %d times, want 1", mock.upsertCalls)
		}
		if mock.lastDoc.SourceType != SourceTypeDocument {
			t.Errorf("source_type = %q, want %q", mock.lastDoc.SourceType, SourceTypeDocument)
		}
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		ix, _ := NewWithQuerier(&mockQuerier{}, 3, nil)

		if err := ix.Upsert(ctx, Document{Content: "x"}, testEmbedding(3)); err == nil {
			t.Error("expected error for missing ID")
		}
		if err := ix.Upsert(ctx, Document{ID: "doc-1"}, testEmbedding(3)); err == nil {
			t.Error("expected error for missing content")
		}
	})

	t.Run("rejects wrong dimensionality", func(t *testing.T) {
		mock := &mockQuerier{}
		ix, _ := NewWithQuerier(mock, 3, nil)

		err := ix.Upsert(ctx, Document{ID: "doc-1", Content: "x"}, testEmbedding(5))
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("error = %v, want ErrDimensionMismatch", err)
		}
		if mock.upsertCalls != 0 {
			t.Errorf("upsert called %d times for bad vector, want 0", mock.upsertCalls)
		}
	})

	t.Run("database error wrapped as unavailable", func(t *testing.T) {
		mock := &mockQuerier{upsertErr: errors.New("connection refused")}
		ix, _ := NewWithQuerier(mock, 3, nil)

		err := ix.Upsert(ctx, Document{ID: "doc-1", Content: "x"}, testEmbedding(3))
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})
}

func TestQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("returns hits", func(t *testing.T) {
		mock := &mockQuerier{
			searchResults: []Hit{
				{ID: "a", Content: "first", Score: 0.93},
				{ID: "b", Content: "second", Score: 0.81},
			},
		}
		ix, _ := NewWithQuerier(mock, 3, nil)

		hits, err := ix.Query(ctx, testEmbedding(3), 5)
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(hits) != 2 {
			t.Fatalf("got %d hits, want 2", len(hits))
		}
		if hits[0].Score < hits[1].Score {
			t.Error("hits not ordered by score descending")
		}
	})

	t.Run("clamps topK", func(t *testing.T) {
		mock := &mockQuerier{}
		ix, _ := NewWithQuerier(mock, 3, nil)

		if _, err := ix.Query(ctx, testEmbedding(3), 0); err != nil {
			t.Fatalf("Query: %v", err)
		}
		if mock.lastLimit != 5 {
			t.Errorf("limit = %d for topK 0, want default 5", mock.lastLimit)
		}

		if _, err := ix.Query(ctx, testEmbedding(3), MaxTopK+50); err != nil {
			t.Fatalf("Query: %v", err)
		}
		if mock.lastLimit != MaxTopK {
			t.Errorf("limit = %d, want clamped to %d", mock.lastLimit, MaxTopK)
		}
	})

	t.Run("rejects wrong dimensionality", func(t *testing.T) {
		mock := &mockQuerier{}
		ix, _ := NewWithQuerier(mock, 3, nil)

		_, err := ix.Query(ctx, testEmbedding(7), 5)
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("error = %v, want ErrDimensionMismatch", err)
		}
		if mock.searchCalls != 0 {
			t.Errorf("search called %d times for bad vector, want 0", mock.searchCalls)
		}
	})

	t.Run("database error wrapped as unavailable", func(t *testing.T) {
		mock := &mockQuerier{searchErr: errors.New("timeout")}
		ix, _ := NewWithQuerier(mock, 3, nil)

		_, err := ix.Query(ctx, testEmbedding(3), 5)
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})
}

func TestCount(t *testing.T) {
	ctx := context.Background()

	t.Run("returns count", func(t *testing.T) {
		ix, _ := NewWithQuerier(&mockQuerier{countResult: 42}, 3, nil)
		n, err := ix.Count(ctx)
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if n != 42 {
			t.Errorf("Count = %d, want 42", n)
		}
	})

	t.Run("database error wrapped as unavailable", func(t *testing.T) {
		ix, _ := NewWithQuerier(&mockQuerier{countErr: errors.New("down")}, 3, nil)
		_, err := ix.Count(ctx)
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})
}
