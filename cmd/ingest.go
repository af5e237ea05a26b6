package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sibylhq/sibyl/internal/app"
	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/internal/ingest"
)

// runIngest loads a JSON seed file into the graph and vector stores.
func runIngest(cfg *config.Config, logger *slog.Logger) error {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "Usage: sibyl ingest <seed-file.json>")
		return fmt.Errorf("missing seed file argument")
	}
	path := os.Args[2]

	seed, err := ingest.LoadSeedFile(path)
	if err != nil {
		return err
	}
	logger.Info("loaded seed file",
		"path", path,
		"nodes", len(seed.Nodes),
		"relationships", len(seed.Relationships),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	stats, err := a.Ingestor.Run(ctx, seed)
	if err != nil {
		return fmt.Errorf("ingesting seed data: %w", err)
	}

	fmt.Printf("Ingested %d nodes (%d failed), %d relationships (%d failed)\n",
		stats.NodesLoaded, stats.NodesFailed,
		stats.RelationshipsLoaded, stats.RelationshipsFailed,
	)

	if stats.NodesFailed > 0 || stats.RelationshipsFailed > 0 {
		return fmt.Errorf("ingestion completed with failures")
	}
	return nil
}
