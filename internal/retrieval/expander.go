package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sibylhq/sibyl/internal/graph"
)

// GraphReader is the subset of the graph store the expander reads from.
type GraphReader interface {
	Similar(ctx context.Context, embedding []float32, limit int, excludeID string) ([]graph.SimilarHit, error)
	Related(ctx context.Context, id string, limit int) ([]graph.Neighbor, error)
}

// Expander pulls graph context for a query embedding: seed nodes from
// similarity search, then one hop of outgoing relationships per seed.
//
// Expansion depth is fixed at one hop. Relevance decays faster with
// distance than an extra round trip per seed is worth.
type Expander struct {
	store        GraphReader
	seedLimit    int
	relatedLimit int
	excludeID    string
	logger       *slog.Logger
}

// NewExpander creates an Expander. excludeID, when non-empty, is passed to
// the similarity search so the store leaves that node out of the seeds.
func NewExpander(store GraphReader, seedLimit, relatedLimit int, excludeID string, logger *slog.Logger) (*Expander, error) {
	if store == nil {
		return nil, errors.New("graph store is required")
	}
	if seedLimit <= 0 || relatedLimit <= 0 {
		return nil, fmt.Errorf("limits must be positive, got seed %d related %d", seedLimit, relatedLimit)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Expander{
		store:        store,
		seedLimit:    seedLimit,
		relatedLimit: relatedLimit,
		excludeID:    excludeID,
		logger:       logger,
	}, nil
}

// Expand returns seeds in similarity order with hops 0, followed by newly
// introduced neighbors with hops 1, in the order their parent seeds were
// processed. A node appearing both as a seed and as a neighbor is kept
// once with the smaller hop count.
//
// A failed similarity search fails the whole expansion; a failed neighbor
// lookup skips that one seed and continues.
func (e *Expander) Expand(ctx context.Context, embedding []float32) ([]Hit, error) {
	seeds, err := e.store.Similar(ctx, embedding, e.seedLimit, e.excludeID)
	if err != nil {
		return nil, fmt.Errorf("expanding graph context: %w", err)
	}
	if len(seeds) == 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(seeds)*(1+e.relatedLimit))
	seen := make(map[string]struct{}, len(seeds))

	for _, seed := range seeds {
		if _, dup := seen[seed.ID]; dup {
			continue
		}
		seen[seed.ID] = struct{}{}
		hits = append(hits, Hit{ID: seed.ID, Content: seed.Content, Score: seed.Score, Hops: 0})
	}

	for _, seed := range seeds {
		neighbors, relErr := e.store.Related(ctx, seed.ID, e.relatedLimit)
		if relErr != nil {
			e.logger.Warn("skipping seed expansion", "seed", seed.ID, "error", relErr)
			continue
		}
		for _, n := range neighbors {
			if _, dup := seen[n.ID]; dup {
				continue
			}
			seen[n.ID] = struct{}{}
			// Neighbor score inherits the seed's similarity scaled by the
			// relationship weight, so assembly can rank one-hop hits.
			hits = append(hits, Hit{
				ID:      n.ID,
				Content: n.Content,
				Score:   seed.Score * n.Weight,
				Hops:    1,
			})
		}
	}

	return hits, nil
}
