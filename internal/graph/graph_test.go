package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// mockQuerier implements Querier for testing
type mockQuerier struct {
	readErr  error
	writeErr error

	readRecords  []*neo4j.Record
	writeRecords []*neo4j.Record

	readCalls  int
	writeCalls int
	lastQuery  string
	lastParams map[string]any
}

func (m *mockQuerier) ExecuteRead(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	m.readCalls++
	m.lastQuery = query
	m.lastParams = params
	if m.readErr != nil {
		return nil, m.readErr
	}
	return m.readRecords, nil
}

func (m *mockQuerier) ExecuteWrite(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	m.writeCalls++
	m.lastQuery = query
	m.lastParams = params
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	return m.writeRecords, nil
}

func record(keys []string, values []any) *neo4j.Record {
	return &neo4j.Record{Keys: keys, Values: values}
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

func TestAddNode(t *testing.T) {
	ctx := context.Background()

	t.Run("writes node properties", func(t *testing.T) {
		mock := &mockQuerier{}
		store, _ := NewWithQuerier(mock, 3, nil)

		node := Node{ID: "go", Content: "Go is a language", Type: "concept", Embedding: testEmbedding(3)}
		if err := store.AddNode(ctx, node); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
		if mock.writeCalls != 1 {
			t.Fatalf("write called %d times, want 1", mock.writeCalls)
		}
		if mock.lastParams["id"] != "go" {
			t.Errorf("id param = %v, want go", mock.lastParams["id"])
		}
		if _, ok := mock.lastParams["embedding"].([]float64); !ok {
			t.Errorf("embedding param type %T, want []float64", mock.lastParams["embedding"])
		}
	})

	t.Run("repeated writes merge on id", func(t *testing.T) {
		mock := &mockQuerier{}
		store, _ := NewWithQuerier(mock, 3, nil)

		node := Node{ID: "go", Content: "Go is a language", Type: "concept", Embedding: testEmbedding(3)}
		for i := 0; i < 2; i++ {
			if err := store.AddNode(ctx, node); err != nil {
				t.Fatalf("AddNode call %d: %v", i+1, err)
			}
		}
		if mock.writeCalls != 2 {
			t.Fatalf("write called %d times, want 2", mock.writeCalls)
		}
		if !strings.Contains(mock.lastQuery, "MERGE (n:Node {id: $id})") {
			t.Errorf("query does not merge on id: %s", mock.lastQuery)
		}
	})

	t.Run("rejects missing fields", func(t *testing.T) {
		store, _ := NewWithQuerier(&mockQuerier{}, 3, nil)

		if err := store.AddNode(ctx, Node{Content: "x", Embedding: testEmbedding(3)}); err == nil {
			t.Error("expected error for missing ID")
		}
		if err := store.AddNode(ctx, Node{ID: "x", Embedding: testEmbedding(3)}); err == nil {
			t.Error("expected error for missing content")
		}
	})

	t.Run("rejects wrong dimensionality", func(t *testing.T) {
		mock := &mockQuerier{}
		store, _ := NewWithQuerier(mock, 3, nil)

		err := store.AddNode(ctx, Node{ID: "x", Content: "y", Embedding: testEmbedding(5)})
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("error = %v, want ErrDimensionMismatch", err)
		}
		if mock.writeCalls != 0 {
			t.Errorf("write called %d times for bad vector, want 0", mock.writeCalls)
		}
	})

	t.Run("database error wrapped as unavailable", func(t *testing.T) {
		mock := &mockQuerier{writeErr: errors.New("connection refused")}
		store, _ := NewWithQuerier(mock, 3, nil)

		err := store.AddNode(ctx, Node{ID: "x", Content: "y", Embedding: testEmbedding(3)})
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})
}

func TestAddRelationship(t *testing.T) {
	ctx := context.Background()

	okRecord := []*neo4j.Record{record([]string{"type"}, []any{"IS_A"})}

	t.Run("sanitized type interpolated into query", func(t *testing.T) {
		mock := &mockQuerier{writeRecords: okRecord}
		store, _ := NewWithQuerier(mock, 3, nil)

		rel := Relationship{Source: "go", Target: "language", Type: "is a", Weight: 0.9}
		if err := store.AddRelationship(ctx, rel); err != nil {
			t.Fatalf("AddRelationship: %v", err)
		}
		if !strings.Contains(mock.lastQuery, "[r:IS_A]") {
			t.Errorf("query %q does not contain sanitized type IS_A", mock.lastQuery)
		}
		if mock.lastParams["weight"] != 0.9 {
			t.Errorf("weight param = %v, want 0.9", mock.lastParams["weight"])
		}
	})

	t.Run("weight defaults to 1", func(t *testing.T) {
		for _, weight := range []float64{0, -0.5, 1.5} {
			mock := &mockQuerier{writeRecords: okRecord}
			store, _ := NewWithQuerier(mock, 3, nil)

			rel := Relationship{Source: "a", Target: "b", Type: "REL", Weight: weight}
			if err := store.AddRelationship(ctx, rel); err != nil {
				t.Fatalf("AddRelationship(weight=%v): %v", weight, err)
			}
			if mock.lastParams["weight"] != float64(1) {
				t.Errorf("weight %v normalized to %v, want 1", weight, mock.lastParams["weight"])
			}
		}
	})

	t.Run("missing endpoint returns not found", func(t *testing.T) {
		mock := &mockQuerier{} // no records back
		store, _ := NewWithQuerier(mock, 3, nil)

		err := store.AddRelationship(ctx, Relationship{Source: "a", Target: "ghost", Type: "REL"})
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("rejects empty type", func(t *testing.T) {
		mock := &mockQuerier{writeRecords: okRecord}
		store, _ := NewWithQuerier(mock, 3, nil)

		for _, relType := range []string{"", "!!!", "  "} {
			err := store.AddRelationship(ctx, Relationship{Source: "a", Target: "b", Type: relType})
			if !errors.Is(err, ErrEmptyRelType) {
				t.Errorf("AddRelationship(type=%q) error = %v, want ErrEmptyRelType", relType, err)
			}
		}
		if mock.writeCalls != 0 {
			t.Errorf("write called %d times for empty types, want 0", mock.writeCalls)
		}
	})

	t.Run("rejects missing endpoints in input", func(t *testing.T) {
		store, _ := NewWithQuerier(&mockQuerier{}, 3, nil)

		if err := store.AddRelationship(ctx, Relationship{Target: "b", Type: "REL"}); err == nil {
			t.Error("expected error for missing source")
		}
		if err := store.AddRelationship(ctx, Relationship{Source: "a", Type: "REL"}); err == nil {
			t.Error("expected error for missing target")
		}
	})

	t.Run("database error wrapped as unavailable", func(t *testing.T) {
		mock := &mockQuerier{writeErr: errors.New("down")}
		store, _ := NewWithQuerier(mock, 3, nil)

		err := store.AddRelationship(ctx, Relationship{Source: "a", Target: "b", Type: "REL"})
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})
}

func TestRelated(t *testing.T) {
	ctx := context.Background()
	keys := []string{"id", "content", "type", "rel_type", "weight"}

	t.Run("returns neighbors", func(t *testing.T) {
		mock := &mockQuerier{
			readRecords: []*neo4j.Record{
				record(keys, []any{"goroutine", "Lightweight thread", "concept", "HAS_FEATURE", 0.8}),
				record(keys, []any{"channel", "Typed conduit", "concept", "HAS_FEATURE", int64(1)}),
			},
		}
		store, _ := NewWithQuerier(mock, 3, nil)

		neighbors, err := store.Related(ctx, "go", 5)
		if err != nil {
			t.Fatalf("Related: %v", err)
		}
		if len(neighbors) != 2 {
			t.Fatalf("got %d neighbors, want 2", len(neighbors))
		}
		if neighbors[0].ID != "goroutine" || neighbors[0].RelType != "HAS_FEATURE" {
			t.Errorf("unexpected first neighbor: %+v", neighbors[0])
		}
		if neighbors[1].Weight != 1 {
			t.Errorf("integer weight = %v, want 1", neighbors[1].Weight)
		}
	})

	t.Run("absent node yields empty result", func(t *testing.T) {
		store, _ := NewWithQuerier(&mockQuerier{}, 3, nil)

		neighbors, err := store.Related(ctx, "ghost", 5)
		if err != nil {
			t.Fatalf("Related: %v", err)
		}
		if len(neighbors) != 0 {
			t.Errorf("got %d neighbors for absent node, want 0", len(neighbors))
		}
	})

	t.Run("defaults limit", func(t *testing.T) {
		mock := &mockQuerier{}
		store, _ := NewWithQuerier(mock, 3, nil)

		if _, err := store.Related(ctx, "go", 0); err != nil {
			t.Fatalf("Related: %v", err)
		}
		if mock.lastParams["limit"] != 5 {
			t.Errorf("limit param = %v, want default 5", mock.lastParams["limit"])
		}
	})

	t.Run("database error wrapped as unavailable", func(t *testing.T) {
		store, _ := NewWithQuerier(&mockQuerier{readErr: errors.New("down")}, 3, nil)

		_, err := store.Related(ctx, "go", 5)
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})
}

func TestSimilar(t *testing.T) {
	ctx := context.Background()
	keys := []string{"id", "content", "type", "similarity"}

	t.Run("returns hits ordered by score", func(t *testing.T) {
		mock := &mockQuerier{
			readRecords: []*neo4j.Record{
				record(keys, []any{"go", "Go is a language", "concept", 0.97}),
				record(keys, []any{"rust", "Rust is a language", "concept", 0.88}),
			},
		}
		store, _ := NewWithQuerier(mock, 3, nil)

		hits, err := store.Similar(ctx, testEmbedding(3), 5, "")
		if err != nil {
			t.Fatalf("Similar: %v", err)
		}
		if len(hits) != 2 {
			t.Fatalf("got %d hits, want 2", len(hits))
		}
		if hits[0].Score < hits[1].Score {
			t.Error("hits not ordered by score descending")
		}
	})

	t.Run("passes exclude ID", func(t *testing.T) {
		mock := &mockQuerier{}
		store, _ := NewWithQuerier(mock, 3, nil)

		if _, err := store.Similar(ctx, testEmbedding(3), 5, "self"); err != nil {
			t.Fatalf("Similar: %v", err)
		}
		if mock.lastParams["excludeID"] != "self" {
			t.Errorf("excludeID param = %v, want self", mock.lastParams["excludeID"])
		}
	})

	t.Run("rejects wrong dimensionality", func(t *testing.T) {
		mock := &mockQuerier{}
		store, _ := NewWithQuerier(mock, 3, nil)

		_, err := store.Similar(ctx, testEmbedding(4), 5, "")
		if !errors.Is(err, ErrDimensionMismatch) {
			t.Errorf("error = %v, want ErrDimensionMismatch", err)
		}
		if mock.readCalls != 0 {
			t.Errorf("read called %d times for bad vector, want 0", mock.readCalls)
		}
	})

	t.Run("database error wrapped as unavailable", func(t *testing.T) {
		store, _ := NewWithQuerier(&mockQuerier{readErr: errors.New("down")}, 3, nil)

		_, err := store.Similar(ctx, testEmbedding(3), 5, "")
		if !errors.Is(err, ErrUnavailable) {
			t.Errorf("error = %v, want ErrUnavailable", err)
		}
	})
}
