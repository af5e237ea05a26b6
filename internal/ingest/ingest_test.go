package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sibylhq/sibyl/internal/graph"
	"github.com/sibylhq/sibyl/internal/vector"
)

type mockEmbedder struct {
	err   error
	calls int
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type mockGraphWriter struct {
	nodeErr map[string]error
	relErr  map[string]error
	nodes   []graph.Node
	rels    []graph.Relationship
}

func (m *mockGraphWriter) AddNode(_ context.Context, node graph.Node) error {
	if err := m.nodeErr[node.ID]; err != nil {
		return err
	}
	m.nodes = append(m.nodes, node)
	return nil
}

func (m *mockGraphWriter) AddRelationship(_ context.Context, rel graph.Relationship) error {
	if err := m.relErr[rel.Source]; err != nil {
		return err
	}
	m.rels = append(m.rels, rel)
	return nil
}

type mockVectorWriter struct {
	err  error
	docs []vector.Document
}

func (m *mockVectorWriter) Upsert(_ context.Context, doc vector.Document, _ []float32) error {
	if m.err != nil {
		return m.err
	}
	m.docs = append(m.docs, doc)
	return nil
}

func newTestIngestor(t *testing.T, e *mockEmbedder, g *mockGraphWriter, v *mockVectorWriter) *Ingestor {
	t.Helper()
	in, err := NewIngestor(e, g, v, nil)
	if err != nil {
		t.Fatalf("NewIngestor() error = %v", err)
	}
	return in
}

func TestNewIngestor(t *testing.T) {
	e := &mockEmbedder{}
	g := &mockGraphWriter{}
	v := &mockVectorWriter{}

	tests := []struct {
		name    string
		e       Embedder
		g       GraphWriter
		v       VectorWriter
		wantErr bool
	}{
		{"valid", e, g, v, false},
		{"nil embedder", nil, g, v, true},
		{"nil graph writer", e, nil, v, true},
		{"nil vector writer", e, g, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIngestor(tt.e, tt.g, tt.v, nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewIngestor() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRun(t *testing.T) {
	t.Run("writes nodes to both stores then relationships", func(t *testing.T) {
		e := &mockEmbedder{}
		g := &mockGraphWriter{}
		v := &mockVectorWriter{}
		in := newTestIngestor(t, e, g, v)

		seed := SeedFile{
			Nodes: []NodeRecord{
				{ID: "go", Content: "Go is a language", Type: "concept"},
				{ID: "pgx", Content: "pgx is a driver", Type: "library"},
			},
			Relationships: []RelationshipRecord{
				{Source: "pgx", Target: "go", Type: "written in", Weight: 0.8},
			},
		}

		stats, err := in.Run(context.Background(), seed)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if stats.NodesLoaded != 2 || stats.NodesFailed != 0 {
			t.Errorf("node stats = %+v", stats)
		}
		if stats.RelationshipsLoaded != 1 || stats.RelationshipsFailed != 0 {
			t.Errorf("relationship stats = %+v", stats)
		}

		if len(g.nodes) != 2 || len(v.docs) != 2 {
			t.Fatalf("graph nodes = %d, vector docs = %d, want 2 each", len(g.nodes), len(v.docs))
		}
		if g.nodes[0].Embedding == nil {
			t.Error("graph node missing embedding")
		}
		if v.docs[0].SourceType != vector.SourceTypeDocument {
			t.Errorf("vector doc source type = %q", v.docs[0].SourceType)
		}
		if len(g.rels) != 1 || g.rels[0].Type != "written in" {
			t.Errorf("relationships = %+v", g.rels)
		}
	})

	t.Run("bad node is skipped and counted", func(t *testing.T) {
		e := &mockEmbedder{}
		g := &mockGraphWriter{nodeErr: map[string]error{"bad": graph.ErrUnavailable}}
		v := &mockVectorWriter{}
		in := newTestIngestor(t, e, g, v)

		seed := SeedFile{Nodes: []NodeRecord{
			{ID: "ok1", Content: "fine"},
			{ID: "bad", Content: "store rejects this"},
			{ID: "", Content: "missing id"},
			{ID: "no-content"},
			{ID: "ok2", Content: "also fine"},
		}}

		stats, err := in.Run(context.Background(), seed)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if stats.NodesLoaded != 2 {
			t.Errorf("NodesLoaded = %d, want 2", stats.NodesLoaded)
		}
		if stats.NodesFailed != 3 {
			t.Errorf("NodesFailed = %d, want 3", stats.NodesFailed)
		}
		if len(g.nodes) != 2 {
			t.Errorf("graph writes = %d, want 2", len(g.nodes))
		}
	})

	t.Run("invalid records skip embedding", func(t *testing.T) {
		e := &mockEmbedder{}
		in := newTestIngestor(t, e, &mockGraphWriter{}, &mockVectorWriter{})

		stats, err := in.Run(context.Background(), SeedFile{Nodes: []NodeRecord{
			{ID: "", Content: "x"},
			{ID: "y"},
		}})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if stats.NodesFailed != 2 {
			t.Errorf("NodesFailed = %d, want 2", stats.NodesFailed)
		}
		if e.calls != 0 {
			t.Errorf("embedder called %d times, want 0", e.calls)
		}
	})

	t.Run("missing relationship endpoint is skipped", func(t *testing.T) {
		e := &mockEmbedder{}
		g := &mockGraphWriter{relErr: map[string]error{"ghost": graph.ErrNotFound}}
		in := newTestIngestor(t, e, g, &mockVectorWriter{})

		seed := SeedFile{
			Nodes: []NodeRecord{{ID: "a", Content: "a"}, {ID: "b", Content: "b"}},
			Relationships: []RelationshipRecord{
				{Source: "ghost", Target: "a", Type: "refers to"},
				{Source: "a", Target: "b", Type: "refers to"},
			},
		}

		stats, err := in.Run(context.Background(), seed)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if stats.RelationshipsLoaded != 1 || stats.RelationshipsFailed != 1 {
			t.Errorf("relationship stats = %+v", stats)
		}
		if len(g.rels) != 1 || g.rels[0].Source != "a" {
			t.Errorf("relationships = %+v", g.rels)
		}
	})

	t.Run("embedding failure does not abort the run", func(t *testing.T) {
		e := &mockEmbedder{err: errors.New("embed service down")}
		g := &mockGraphWriter{}
		in := newTestIngestor(t, e, g, &mockVectorWriter{})

		stats, err := in.Run(context.Background(), SeedFile{Nodes: []NodeRecord{
			{ID: "a", Content: "a"},
			{ID: "b", Content: "b"},
		}})
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		if stats.NodesFailed != 2 || stats.NodesLoaded != 0 {
			t.Errorf("stats = %+v", stats)
		}
		if len(g.nodes) != 0 {
			t.Errorf("graph writes = %d, want 0", len(g.nodes))
		}
	})

	t.Run("canceled context stops the run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		in := newTestIngestor(t, &mockEmbedder{}, &mockGraphWriter{}, &mockVectorWriter{})
		_, err := in.Run(ctx, SeedFile{Nodes: []NodeRecord{{ID: "a", Content: "a"}}})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	})
}

func TestLoadSeedFile(t *testing.T) {
	t.Run("parses a valid file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.json")
		data := `{
			"nodes": [{"id": "go", "content": "Go is a language", "type": "concept"}],
			"relationships": [{"source": "go", "target": "pgx", "type": "used by", "weight": 0.5}]
		}`
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			t.Fatal(err)
		}

		seed, err := LoadSeedFile(path)
		if err != nil {
			t.Fatalf("LoadSeedFile() error = %v", err)
		}
		if len(seed.Nodes) != 1 || seed.Nodes[0].ID != "go" {
			t.Errorf("nodes = %+v", seed.Nodes)
		}
		if len(seed.Relationships) != 1 || seed.Relationships[0].Weight != 0.5 {
			t.Errorf("relationships = %+v", seed.Relationships)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadSeedFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
			t.Error("LoadSeedFile() expected error for missing file")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.json")
		if err := os.WriteFile(path, []byte("{nodes:"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadSeedFile(path); err == nil {
			t.Error("LoadSeedFile() expected error for malformed json")
		}
	})
}
