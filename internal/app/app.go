// Package app provides application initialization and dependency injection.
//
// App is the container that wires configuration, Genkit, the backing
// stores, and the retrieval pipeline together. Setup builds everything in
// dependency order; Close releases it in reverse.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/sibylhq/sibyl/internal/api"
	"github.com/sibylhq/sibyl/internal/chat"
	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/internal/embed"
	"github.com/sibylhq/sibyl/internal/graph"
	"github.com/sibylhq/sibyl/internal/ingest"
	"github.com/sibylhq/sibyl/internal/retrieval"
	"github.com/sibylhq/sibyl/internal/vector"
)

// App is the core application container.
type App struct {
	Config *config.Config

	Genkit *genkit.Genkit
	Pool   *pgxpool.Pool
	Driver neo4j.DriverWithContext

	Embedder     *embed.Provider
	Vector       *vector.Index
	Graph        *graph.Store
	Orchestrator *retrieval.Orchestrator
	Responder    *chat.Responder
	Flow         *chat.Flow
	Ingestor     *ingest.Ingestor
	Server       *api.Server

	logger      *slog.Logger
	otelCleanup func()
}

// Close gracefully releases all resources.
func (a *App) Close() error {
	a.logger.Info("shutting down application")

	if a.Driver != nil {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		if err := a.Driver.Close(ctx); err != nil {
			a.logger.Warn("closing neo4j driver", "error", err)
		}
		cancel()
	}

	if a.Pool != nil {
		a.Pool.Close()
		a.logger.Debug("database pool closed")
	}

	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	return nil
}
