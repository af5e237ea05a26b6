package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/tracing"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/sibylhq/sibyl/db"
	"github.com/sibylhq/sibyl/internal/api"
	"github.com/sibylhq/sibyl/internal/chat"
	"github.com/sibylhq/sibyl/internal/config"
	"github.com/sibylhq/sibyl/internal/embed"
	"github.com/sibylhq/sibyl/internal/graph"
	"github.com/sibylhq/sibyl/internal/ingest"
	"github.com/sibylhq/sibyl/internal/retrieval"
	"github.com/sibylhq/sibyl/internal/vector"
)

const (
	connectTimeout = 5 * time.Second
	closeTimeout   = 5 * time.Second
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, retErr error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	// On error, clean up everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	a.otelCleanup = provideOtelShutdown(ctx, cfg, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Pool = pool

	driver, err := provideNeo4jDriver(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Driver = driver

	g, err := provideGenkit(ctx)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found", cfg.EmbedderModel)
	}

	if err := a.buildPipeline(embedder); err != nil {
		return nil, err
	}

	return a, nil
}

// buildPipeline wires the retrieval pipeline and the HTTP surface on top
// of the already-connected stores.
func (a *App) buildPipeline(embedder ai.Embedder) error {
	cfg := a.Config
	logger := a.logger

	provider, err := embed.NewProvider(embedder, cfg.EmbeddingDims, logger)
	if err != nil {
		return fmt.Errorf("creating embedding provider: %w", err)
	}
	a.Embedder = provider

	index, err := vector.New(a.Pool, cfg.EmbeddingDims, logger)
	if err != nil {
		return fmt.Errorf("creating vector index: %w", err)
	}
	a.Vector = index

	store, err := graph.NewStore(a.Driver, cfg.EmbeddingDims, logger)
	if err != nil {
		return fmt.Errorf("creating graph store: %w", err)
	}
	a.Graph = store

	expander, err := retrieval.NewExpander(store, cfg.GraphSeedLimit, cfg.GraphRelatedLimit, cfg.ExcludeSelfID, logger)
	if err != nil {
		return fmt.Errorf("creating graph expander: %w", err)
	}

	assembler, err := retrieval.NewAssembler(cfg.MaxContextChars, logger)
	if err != nil {
		return fmt.Errorf("creating context assembler: %w", err)
	}

	orchestrator, err := retrieval.NewOrchestrator(provider, index, expander, assembler, retrieval.Options{
		Strategy:     retrieval.Strategy(cfg.RetrievalStrategy),
		TopK:         cfg.VectorTopK,
		EmbedTimeout: cfg.EmbedTimeout(),
		StoreTimeout: cfg.StoreTimeout(),
	}, logger)
	if err != nil {
		return fmt.Errorf("creating retrieval orchestrator: %w", err)
	}
	a.Orchestrator = orchestrator

	responder, err := chat.NewResponder(a.Genkit, orchestrator, cfg.ModelName, logger)
	if err != nil {
		return fmt.Errorf("creating chat responder: %w", err)
	}
	a.Responder = responder
	a.Flow = chat.NewFlow(a.Genkit, responder)

	ingestor, err := ingest.NewIngestor(provider, store, index, logger)
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}
	a.Ingestor = ingestor

	server, err := api.NewServer(api.ServerConfig{
		Logger:          logger,
		Responder:       responder,
		PG:              a.Pool,
		Graph:           a.Driver,
		Docs:            a.Vector,
		TrustProxy:      cfg.TrustProxy,
		RateLimit:       cfg.RateLimit,
		RateWindow:      cfg.RateWindow(),
		MaxMessages:     cfg.MaxMessages,
		MaxMessageChars: cfg.MaxMessageChars,
	})
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}
	a.Server = server

	return nil
}

// provideOtelShutdown sets up OTLP trace export before Genkit
// initialization so the TracerProvider is ready when flows run. An empty
// endpoint disables tracing and returns a no-op cleanup.
func provideOtelShutdown(ctx context.Context, cfg *config.Config, logger *slog.Logger) func() {
	if cfg.OTLPEndpoint == "" {
		return func() {}
	}

	// Set OTEL env vars for Genkit's TracerProvider to pick up.
	// SAFETY: os.Setenv is not concurrent-safe, but this runs exactly once
	// during startup, before goroutines are spawned.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating trace exporter, tracing disabled", "error", err)
		return func() {}
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tracing.TracerProvider().RegisterSpanProcessor(processor)

	logger.Debug("trace export enabled",
		"endpoint", cfg.OTLPEndpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	shutdown := tracing.TracerProvider().Shutdown

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("shutting down tracer provider", "error", err)
		}
	}
}

// provideGenkit initializes Genkit with the Google AI plugin. Call
// ordering in Setup ensures tracing is set up first.
func provideGenkit(ctx context.Context) (*genkit.Genkit, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, errors.New("initializing genkit")
	}
	return g, nil
}

// provideDBPool runs migrations and creates a PostgreSQL connection pool.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideNeo4jDriver connects to Neo4j and verifies connectivity.
func provideNeo4jDriver(ctx context.Context, cfg *config.Config) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI,
		neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	verifyCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(verifyCtx); err != nil {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), closeTimeout)
		defer closeCancel()
		_ = driver.Close(closeCtx)
		return nil, fmt.Errorf("verifying neo4j connectivity: %w", err)
	}

	return driver, nil
}
