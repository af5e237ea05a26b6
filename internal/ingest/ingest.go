// Package ingest loads knowledge seed data into the graph and vector
// stores. Ingestion runs offline, before the service answers queries.
//
// A seed file is processed in two phases: all nodes first, then all
// relationships, so every relationship endpoint already exists when the
// relationship is written. Individual item failures are logged and
// counted but never abort the run.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sibylhq/sibyl/internal/graph"
	"github.com/sibylhq/sibyl/internal/vector"
)

// NodeRecord is a single node entry in a seed file.
type NodeRecord struct {
	ID      string `json:"id"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// RelationshipRecord is a single relationship entry in a seed file.
type RelationshipRecord struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Type   string  `json:"type"`
	Weight float64 `json:"weight"`
}

// SeedFile is the on-disk ingestion format.
type SeedFile struct {
	Nodes         []NodeRecord         `json:"nodes"`
	Relationships []RelationshipRecord `json:"relationships"`
}

// Stats summarizes an ingestion run.
type Stats struct {
	NodesLoaded         int
	NodesFailed         int
	RelationshipsLoaded int
	RelationshipsFailed int
}

// Embedder produces embedding vectors for node content.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GraphWriter receives nodes and relationships.
type GraphWriter interface {
	AddNode(ctx context.Context, node graph.Node) error
	AddRelationship(ctx context.Context, rel graph.Relationship) error
}

// VectorWriter receives documents for similarity search.
type VectorWriter interface {
	Upsert(ctx context.Context, doc vector.Document, embedding []float32) error
}

// Ingestor writes seed data into both retrieval stores. Each node is
// embedded once and the vector is shared by the graph node and the
// vector document.
type Ingestor struct {
	embedder Embedder
	graph    GraphWriter
	vectors  VectorWriter
	logger   *slog.Logger
}

// NewIngestor creates an ingestor over the given stores.
func NewIngestor(embedder Embedder, gw GraphWriter, vw VectorWriter, logger *slog.Logger) (*Ingestor, error) {
	if embedder == nil {
		return nil, errors.New("ingest: embedder is required")
	}
	if gw == nil {
		return nil, errors.New("ingest: graph writer is required")
	}
	if vw == nil {
		return nil, errors.New("ingest: vector writer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingestor{embedder: embedder, graph: gw, vectors: vw, logger: logger}, nil
}

// Run ingests a full seed file, nodes before relationships. A non-nil
// error is returned only when the context is canceled; item failures
// are reflected in Stats.
func (in *Ingestor) Run(ctx context.Context, seed SeedFile) (Stats, error) {
	var stats Stats

	if err := in.IngestNodes(ctx, seed.Nodes, &stats); err != nil {
		return stats, err
	}
	if err := in.IngestRelationships(ctx, seed.Relationships, &stats); err != nil {
		return stats, err
	}

	in.logger.Info("ingestion finished",
		"nodes_loaded", stats.NodesLoaded,
		"nodes_failed", stats.NodesFailed,
		"relationships_loaded", stats.RelationshipsLoaded,
		"relationships_failed", stats.RelationshipsFailed,
	)
	return stats, nil
}

// IngestNodes embeds and writes each node into both stores, updating
// stats as it goes. A node that fails embedding or either store write
// is counted as failed and skipped.
func (in *Ingestor) IngestNodes(ctx context.Context, nodes []NodeRecord, stats *Stats) error {
	for _, rec := range nodes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ingesting nodes: %w", err)
		}

		if err := in.ingestNode(ctx, rec); err != nil {
			stats.NodesFailed++
			in.logger.Warn("skipping node", "id", rec.ID, "error", err)
			continue
		}
		stats.NodesLoaded++
	}
	return nil
}

func (in *Ingestor) ingestNode(ctx context.Context, rec NodeRecord) error {
	if rec.ID == "" {
		return errors.New("missing id")
	}
	if rec.Content == "" {
		return errors.New("missing content")
	}

	embedding, err := in.embedder.Embed(ctx, rec.Content)
	if err != nil {
		return fmt.Errorf("embedding content: %w", err)
	}

	if err := in.graph.AddNode(ctx, graph.Node{
		ID:        rec.ID,
		Content:   rec.Content,
		Type:      rec.Type,
		Embedding: embedding,
	}); err != nil {
		return fmt.Errorf("writing graph node: %w", err)
	}

	if err := in.vectors.Upsert(ctx, vector.Document{
		ID:         rec.ID,
		Content:    rec.Content,
		SourceType: vector.SourceTypeDocument,
	}, embedding); err != nil {
		return fmt.Errorf("writing vector document: %w", err)
	}

	return nil
}

// IngestRelationships writes each relationship, updating stats. A
// relationship whose endpoints are missing is counted as failed and
// skipped.
func (in *Ingestor) IngestRelationships(ctx context.Context, rels []RelationshipRecord, stats *Stats) error {
	for _, rec := range rels {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("ingesting relationships: %w", err)
		}

		err := in.graph.AddRelationship(ctx, graph.Relationship{
			Source: rec.Source,
			Target: rec.Target,
			Type:   rec.Type,
			Weight: rec.Weight,
		})
		if err != nil {
			stats.RelationshipsFailed++
			in.logger.Warn("skipping relationship",
				"source", rec.Source,
				"target", rec.Target,
				"type", rec.Type,
				"error", err,
			)
			continue
		}
		stats.RelationshipsLoaded++
	}
	return nil
}

// LoadSeedFile reads and parses a JSON seed file.
func LoadSeedFile(path string) (SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SeedFile{}, fmt.Errorf("reading seed file: %w", err)
	}

	var seed SeedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return SeedFile{}, fmt.Errorf("parsing seed file %s: %w", path, err)
	}
	return seed, nil
}
