// Package graph implements the knowledge graph store backed by Neo4j.
//
// Nodes carry content plus a dense embedding; directed relationships are
// typed and weighted. The store answers two read shapes used during
// retrieval: outgoing one-hop neighbors of a node, and embedding similarity
// over all nodes.
//
// Every operation opens its own session and releases it before returning,
// so the Store holds no per-call state and is safe for concurrent use.
package graph

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Sentinel errors for graph operations.
var (
	// ErrNotFound indicates a referenced node does not exist.
	ErrNotFound = errors.New("node not found")

	// ErrUnavailable indicates the graph database failed or is unreachable.
	ErrUnavailable = errors.New("graph store unavailable")

	// ErrDimensionMismatch indicates an embedding whose length does not
	// match the store's configured dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimensionality mismatch")

	// ErrEmptyRelType indicates a relationship type that is empty, or
	// empty once sanitized.
	ErrEmptyRelType = errors.New("empty relationship type")
)

// Node is a knowledge graph node.
type Node struct {
	ID        string
	Content   string
	Type      string
	Embedding []float32
}

// Relationship is a typed, weighted, directed edge between two nodes.
type Relationship struct {
	Source string
	Target string
	Type   string
	Weight float64
}

// Neighbor is a node reached by following an outgoing relationship.
type Neighbor struct {
	ID      string
	Content string
	Type    string
	RelType string
	Weight  float64
}

// SimilarHit is a node returned by embedding similarity search.
type SimilarHit struct {
	ID      string
	Content string
	Type    string
	Score   float64
}

// Querier executes Cypher against the graph database. Defined by the
// consumer so tests can substitute a mock.
type Querier interface {
	ExecuteRead(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error)
	ExecuteWrite(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error)
}

// Store manages knowledge graph nodes and relationships.
//
// Store is safe for concurrent use by multiple goroutines.
type Store struct {
	queries Querier
	dims    int
	logger  *slog.Logger
}

// NewStore creates a Store backed by a Neo4j driver.
func NewStore(driver neo4j.DriverWithContext, dims int, logger *slog.Logger) (*Store, error) {
	if driver == nil {
		return nil, errors.New("driver is required")
	}
	return NewWithQuerier(&neo4jQuerier{driver: driver}, dims, logger)
}

// NewWithQuerier creates a Store with a custom Querier. Used by tests.
func NewWithQuerier(querier Querier, dims int, logger *slog.Logger) (*Store, error) {
	if querier == nil {
		return nil, errors.New("querier is required")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("dims must be positive, got %d", dims)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{queries: querier, dims: dims, logger: logger}, nil
}

// AddNode creates a node or replaces the properties of an existing node
// with the same ID.
func (s *Store) AddNode(ctx context.Context, node Node) error {
	if node.ID == "" {
		return errors.New("node ID is required")
	}
	if node.Content == "" {
		return errors.New("node content is required")
	}
	if len(node.Embedding) != s.dims {
		return fmt.Errorf("%w: store expects %d, got %d", ErrDimensionMismatch, s.dims, len(node.Embedding))
	}

	_, err := s.queries.ExecuteWrite(ctx,
		`MERGE (n:Node {id: $id})
		 SET n.content = $content,
		     n.type = $type,
		     n.embedding = $embedding`,
		map[string]any{
			"id":        node.ID,
			"content":   node.Content,
			"type":      node.Type,
			"embedding": toFloat64s(node.Embedding),
		})
	if err != nil {
		return fmt.Errorf("%w: adding node %q: %w", ErrUnavailable, node.ID, err)
	}

	s.logger.Debug("added node", "id", node.ID, "type", node.Type, "content_length", len(node.Content))
	return nil
}

// AddRelationship creates a directed edge between two existing nodes.
// The relationship type is sanitized with SanitizeRelType before being
// interpolated into the query. Returns ErrNotFound when either endpoint
// does not exist. A weight outside (0, 1] is replaced with 1.
func (s *Store) AddRelationship(ctx context.Context, rel Relationship) error {
	if rel.Source == "" || rel.Target == "" {
		return errors.New("relationship source and target are required")
	}

	relType := SanitizeRelType(rel.Type)
	if strings.Trim(relType, "_") == "" {
		return fmt.Errorf("%w: %q", ErrEmptyRelType, rel.Type)
	}

	weight := rel.Weight
	if weight <= 0 || weight > 1 {
		weight = 1
	}

	// relType is restricted to [A-Z0-9_] by SanitizeRelType; Cypher cannot
	// parameterize relationship types.
	records, err := s.queries.ExecuteWrite(ctx,
		fmt.Sprintf(`MATCH (from:Node {id: $source})
		 MATCH (to:Node {id: $target})
		 MERGE (from)-[r:%s]->(to)
		 SET r.weight = $weight
		 RETURN type(r) AS type`, relType),
		map[string]any{
			"source": rel.Source,
			"target": rel.Target,
			"weight": weight,
		})
	if err != nil {
		return fmt.Errorf("%w: adding relationship %s-[%s]->%s: %w",
			ErrUnavailable, rel.Source, relType, rel.Target, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: relationship %s-[%s]->%s requires both endpoints",
			ErrNotFound, rel.Source, relType, rel.Target)
	}

	s.logger.Debug("added relationship",
		"source", rel.Source, "target", rel.Target, "type", relType, "weight", weight)
	return nil
}

// Related returns nodes reached by following outgoing relationships from
// the given node, up to limit. An absent node yields an empty result, not
// an error.
func (s *Store) Related(ctx context.Context, id string, limit int) ([]Neighbor, error) {
	if id == "" {
		return nil, errors.New("node ID is required")
	}
	if limit <= 0 {
		limit = 5
	}

	records, err := s.queries.ExecuteRead(ctx,
		`MATCH (n:Node {id: $id})-[r]->(related:Node)
		 RETURN related.id AS id, related.content AS content, related.type AS type,
		        type(r) AS rel_type, coalesce(r.weight, 1.0) AS weight
		 LIMIT $limit`,
		map[string]any{
			"id":    id,
			"limit": limit,
		})
	if err != nil {
		return nil, fmt.Errorf("%w: finding nodes related to %q: %w", ErrUnavailable, id, err)
	}

	neighbors := make([]Neighbor, 0, len(records))
	for _, record := range records {
		neighbors = append(neighbors, Neighbor{
			ID:      recordString(record, "id"),
			Content: recordString(record, "content"),
			Type:    recordString(record, "type"),
			RelType: recordString(record, "rel_type"),
			Weight:  recordFloat64(record, "weight"),
		})
	}
	return neighbors, nil
}

// Similar returns up to limit nodes ordered by cosine similarity between
// their stored embedding and the given one, highest first. When excludeID
// is non-empty, the node with that ID is left out of the results.
func (s *Store) Similar(ctx context.Context, embedding []float32, limit int, excludeID string) ([]SimilarHit, error) {
	if len(embedding) != s.dims {
		return nil, fmt.Errorf("%w: store expects %d, got %d", ErrDimensionMismatch, s.dims, len(embedding))
	}
	if limit <= 0 {
		limit = 5
	}

	records, err := s.queries.ExecuteRead(ctx,
		`MATCH (n:Node)
		 WHERE n.embedding IS NOT NULL
		   AND ($excludeID = '' OR n.id <> $excludeID)
		 WITH n, vector.similarity.cosine(n.embedding, $embedding) AS similarity
		 ORDER BY similarity DESC
		 LIMIT $limit
		 RETURN n.id AS id, n.content AS content, n.type AS type, similarity`,
		map[string]any{
			"embedding": toFloat64s(embedding),
			"limit":     limit,
			"excludeID": excludeID,
		})
	if err != nil {
		return nil, fmt.Errorf("%w: finding similar nodes: %w", ErrUnavailable, err)
	}

	hits := make([]SimilarHit, 0, len(records))
	for _, record := range records {
		hits = append(hits, SimilarHit{
			ID:      recordString(record, "id"),
			Content: recordString(record, "content"),
			Type:    recordString(record, "type"),
			Score:   recordFloat64(record, "similarity"),
		})
	}
	return hits, nil
}

// toFloat64s widens an embedding for the Bolt protocol, which has no
// 32-bit float list type.
func toFloat64s(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func recordString(record *neo4j.Record, key string) string {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return ""
	}
	s, _ := val.(string)
	return s
}

func recordFloat64(record *neo4j.Record, key string) float64 {
	val, ok := record.Get(key)
	if !ok || val == nil {
		return 0
	}
	switch v := val.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return 0
	}
}
