package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sibylhq/sibyl/internal/vector"
)

// ErrEmptyQuery indicates an empty or whitespace-only query. No embedding
// call is made in this case.
var ErrEmptyQuery = errors.New("empty query")

// Strategy selects which retrieval paths the orchestrator runs.
type Strategy string

const (
	// StrategyVector runs the vector index path only.
	StrategyVector Strategy = "vector"

	// StrategyGraph runs the vector index and graph expansion concurrently.
	StrategyGraph Strategy = "graph"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	return s == StrategyVector || s == StrategyGraph
}

// Embedder converts a query to its embedding.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorQuerier is the subset of the vector index the orchestrator uses.
type VectorQuerier interface {
	Query(ctx context.Context, embedding []float32, topK int) ([]vector.Hit, error)
}

// GraphExpander produces graph-derived hits for a query embedding.
type GraphExpander interface {
	Expand(ctx context.Context, embedding []float32) ([]Hit, error)
}

// Options configures an Orchestrator.
type Options struct {
	// Strategy selects vector-only or graph-expanded retrieval.
	Strategy Strategy

	// TopK bounds the vector index result count.
	TopK int

	// EmbedTimeout applies to the embedding call. Expiry is fatal to the
	// request.
	EmbedTimeout time.Duration

	// StoreTimeout applies independently to the vector query and the
	// graph expansion. Expiry degrades that path to empty results.
	StoreTimeout time.Duration
}

// Orchestrator coordinates the retrieval pipeline: embed the query, run
// the vector and graph paths concurrently, merge, and assemble the context
// block. Backing store failures degrade to empty results; only an
// embedding failure is fatal.
//
// Orchestrator is safe for concurrent use by multiple goroutines.
type Orchestrator struct {
	embedder  Embedder
	index     VectorQuerier
	expander  GraphExpander
	assembler *Assembler
	opts      Options
	logger    *slog.Logger
}

// NewOrchestrator creates an Orchestrator. expander may be nil when the
// strategy is StrategyVector.
func NewOrchestrator(embedder Embedder, index VectorQuerier, expander GraphExpander,
	assembler *Assembler, opts Options, logger *slog.Logger) (*Orchestrator, error) {

	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if index == nil {
		return nil, errors.New("vector index is required")
	}
	if assembler == nil {
		return nil, errors.New("assembler is required")
	}
	if !opts.Strategy.Valid() {
		return nil, fmt.Errorf("unknown strategy %q", opts.Strategy)
	}
	if opts.Strategy == StrategyGraph && expander == nil {
		return nil, errors.New("graph strategy requires an expander")
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.EmbedTimeout <= 0 {
		opts.EmbedTimeout = 10 * time.Second
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		embedder:  embedder,
		index:     index,
		expander:  expander,
		assembler: assembler,
		opts:      opts,
		logger:    logger,
	}, nil
}

// Retrieve assembles the context block for a query.
//
// Merge order is graph-expanded hits first, then vector hits deduplicated
// against graph IDs. The order is deterministic given both result sets,
// independent of which path finishes first.
func (o *Orchestrator) Retrieve(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}

	embedCtx, cancel := context.WithTimeout(ctx, o.opts.EmbedTimeout)
	defer cancel()

	embedding, err := o.embedder.Embed(embedCtx, query)
	if err != nil {
		return "", fmt.Errorf("embedding query: %w", err)
	}

	var (
		wg         sync.WaitGroup
		vectorHits []Hit
		graphHits  []Hit
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		vectorHits = o.queryVector(ctx, embedding)
	}()

	if o.opts.Strategy == StrategyGraph {
		wg.Add(1)
		go func() {
			defer wg.Done()
			graphHits = o.expandGraph(ctx, embedding)
		}()
	}
	wg.Wait()

	merged := mergeHits(graphHits, vectorHits)
	o.logger.Debug("retrieval complete",
		"graph_hits", len(graphHits), "vector_hits", len(vectorHits), "merged", len(merged))

	return o.assembler.Assemble(merged), nil
}

// queryVector runs the vector index path. Failures degrade to no hits.
func (o *Orchestrator) queryVector(ctx context.Context, embedding []float32) []Hit {
	storeCtx, cancel := context.WithTimeout(ctx, o.opts.StoreTimeout)
	defer cancel()

	results, err := o.index.Query(storeCtx, embedding, o.opts.TopK)
	if err != nil {
		o.logger.Warn("vector retrieval degraded", "error", err)
		return nil
	}

	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, Hit{ID: r.ID, Content: r.Content, Score: r.Score, Hops: 0})
	}
	return hits
}

// expandGraph runs the graph path. Failures degrade to no hits.
func (o *Orchestrator) expandGraph(ctx context.Context, embedding []float32) []Hit {
	storeCtx, cancel := context.WithTimeout(ctx, o.opts.StoreTimeout)
	defer cancel()

	hits, err := o.expander.Expand(storeCtx, embedding)
	if err != nil {
		o.logger.Warn("graph retrieval degraded", "error", err)
		return nil
	}
	return hits
}

// mergeHits places graph hits before vector hits and drops vector hits
// whose ID already appeared in the graph results.
func mergeHits(graphHits, vectorHits []Hit) []Hit {
	merged := make([]Hit, 0, len(graphHits)+len(vectorHits))
	seen := make(map[string]struct{}, len(graphHits))

	for _, h := range graphHits {
		seen[h.ID] = struct{}{}
		merged = append(merged, h)
	}
	for _, h := range vectorHits {
		if _, dup := seen[h.ID]; dup {
			continue
		}
		seen[h.ID] = struct{}{}
		merged = append(merged, h)
	}
	return merged
}
