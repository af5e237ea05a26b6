// Package retrieval implements the context retrieval pipeline: graph
// expansion of similarity seeds, merge and deduplication of heterogeneous
// results, size-bounded context assembly, and the orchestrator that runs
// the vector and graph paths concurrently with per-call timeouts.
package retrieval

// Hit is an ephemeral retrieval result. Hops is the graph-traversal
// distance from the query: 0 for direct similarity matches, 1 for nodes
// reached through a relationship. Hits are never persisted.
type Hit struct {
	ID      string
	Content string
	Score   float64
	Hops    int
}
