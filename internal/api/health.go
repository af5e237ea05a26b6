package api

import (
	"context"
	"log/slog"
	"net/http"
)

// pgPinger is the readiness view of *pgxpool.Pool.
type pgPinger interface {
	Ping(ctx context.Context) error
}

// graphVerifier is the readiness view of neo4j.DriverWithContext.
type graphVerifier interface {
	VerifyConnectivity(ctx context.Context) error
}

// documentCounter is the stats view of *vector.Index.
type documentCounter interface {
	Count(ctx context.Context) (int, error)
}

// healthHandler serves liveness, readiness, and stats probes.
type healthHandler struct {
	pg     pgPinger
	graph  graphVerifier
	docs   documentCounter
	logger *slog.Logger
}

// liveness returns 200 OK if the process is alive.
func (h *healthHandler) liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness returns 200 OK only when both backing stores answer.
func (h *healthHandler) readiness(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.pg == nil || h.graph == nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "backing stores not configured")
		return
	}
	if err := h.pg.Ping(ctx); err != nil {
		h.logger.Error("readiness check failed", "store", "postgres", "error", err)
		writeError(w, http.StatusServiceUnavailable, "not_ready", "vector store not ready")
		return
	}
	if err := h.graph.VerifyConnectivity(ctx); err != nil {
		h.logger.Error("readiness check failed", "store", "neo4j", "error", err)
		writeError(w, http.StatusServiceUnavailable, "not_ready", "graph store not ready")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// stats reports the size of the document index for operational checks
// after an ingestion run.
func (h *healthHandler) stats(w http.ResponseWriter, r *http.Request) {
	if h.docs == nil {
		writeError(w, http.StatusServiceUnavailable, "not_ready", "document index not configured")
		return
	}
	count, err := h.docs.Count(r.Context())
	if err != nil {
		h.logger.Error("stats check failed", "store", "postgres", "error", err)
		writeError(w, http.StatusServiceUnavailable, "not_ready", "document index not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"documents": count})
}
