package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrMissingAPIKey indicates a required API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidEmbedderModel indicates the embedder model is invalid.
	ErrInvalidEmbedderModel = errors.New("invalid embedder model")

	// ErrInvalidEmbeddingDims indicates the embedding dimensionality is out of range.
	ErrInvalidEmbeddingDims = errors.New("invalid embedding dimensionality")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresPassword indicates the PostgreSQL password is invalid.
	ErrInvalidPostgresPassword = errors.New("invalid PostgreSQL password")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidNeo4jURI indicates the Neo4j URI is invalid.
	ErrInvalidNeo4jURI = errors.New("invalid Neo4j URI")

	// ErrInvalidStrategy indicates the retrieval strategy is not supported.
	ErrInvalidStrategy = errors.New("invalid retrieval strategy")

	// ErrInvalidRetrievalLimit indicates a retrieval limit is out of range.
	ErrInvalidRetrievalLimit = errors.New("invalid retrieval limit")

	// ErrInvalidContextBudget indicates the context size budget is out of range.
	ErrInvalidContextBudget = errors.New("invalid context budget")

	// ErrInvalidTimeout indicates a timeout value is out of range.
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidRateLimit indicates the rate limit configuration is out of range.
	ErrInvalidRateLimit = errors.New("invalid rate limit")
)

// Validate validates configuration values.
// Returns sentinel errors that can be checked with errors.Is().
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	// API key (required for embedding and completion)
	if os.Getenv("GEMINI_API_KEY") == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY environment variable is required\n"+
			"Get your API key at: https://ai.google.dev/gemini-api/docs/api-key",
			ErrMissingAPIKey)
	}

	// Model configuration
	if c.ModelName == "" {
		return fmt.Errorf("%w: model_name cannot be empty", ErrInvalidModelName)
	}
	if c.EmbedderModel == "" {
		return fmt.Errorf("%w: embedder_model cannot be empty", ErrInvalidEmbedderModel)
	}

	// Dimensionality is fixed for the life of the index; a mismatch with the
	// provisioned pgvector column is a configuration error, not a runtime one.
	// gemini-embedding-001 supports output dims in [128, 3072].
	if c.EmbeddingDims < 128 || c.EmbeddingDims > 3072 {
		return fmt.Errorf("%w: must be between 128 and 3072, got %d",
			ErrInvalidEmbeddingDims, c.EmbeddingDims)
	}

	// PostgreSQL configuration
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host cannot be empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: must be between 1 and 65535, got %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name cannot be empty", ErrInvalidPostgresDBName)
	}
	if c.PostgresPassword == "" {
		return fmt.Errorf("%w: postgres_password must be set in config.yaml",
			ErrInvalidPostgresPassword)
	}
	if c.PostgresPassword == "sibyl_dev_password" {
		slog.Warn("Using default development password for PostgreSQL",
			"warning", "Change postgres_password in config.yaml for production deployments")
	}

	// Modern SSL modes only - exclude deprecated allow/prefer (MITM vulnerable)
	// Reference: https://www.postgresql.org/docs/current/libpq-ssl.html
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	if !slices.Contains(validSSLModes, c.PostgresSSLMode) {
		return fmt.Errorf("%w: %q is not valid, must be one of: %v",
			ErrInvalidPostgresSSLMode, c.PostgresSSLMode, validSSLModes)
	}

	// Neo4j configuration
	if c.Neo4jURI == "" {
		return fmt.Errorf("%w: neo4j_uri cannot be empty", ErrInvalidNeo4jURI)
	}

	// Retrieval configuration
	if c.RetrievalStrategy != StrategyGraph && c.RetrievalStrategy != StrategyVector {
		return fmt.Errorf("%w: %q, must be %q or %q",
			ErrInvalidStrategy, c.RetrievalStrategy, StrategyGraph, StrategyVector)
	}
	if c.VectorTopK < 1 || c.VectorTopK > 100 {
		return fmt.Errorf("%w: vector_top_k must be between 1 and 100, got %d",
			ErrInvalidRetrievalLimit, c.VectorTopK)
	}
	if c.GraphSeedLimit < 1 || c.GraphSeedLimit > 50 {
		return fmt.Errorf("%w: graph_seed_limit must be between 1 and 50, got %d",
			ErrInvalidRetrievalLimit, c.GraphSeedLimit)
	}
	if c.GraphRelatedLimit < 1 || c.GraphRelatedLimit > 50 {
		return fmt.Errorf("%w: graph_related_limit must be between 1 and 50, got %d",
			ErrInvalidRetrievalLimit, c.GraphRelatedLimit)
	}
	if c.MaxContextChars < 100 {
		return fmt.Errorf("%w: max_context_chars must be at least 100, got %d",
			ErrInvalidContextBudget, c.MaxContextChars)
	}
	if c.EmbedTimeoutMS < 100 || c.StoreTimeoutMS < 100 {
		return fmt.Errorf("%w: embed_timeout_ms and store_timeout_ms must be at least 100",
			ErrInvalidTimeout)
	}

	// Server configuration
	if c.RateLimit < 1 || c.RateWindowSecs < 1 {
		return fmt.Errorf("%w: rate_limit and rate_window_secs must be positive",
			ErrInvalidRateLimit)
	}

	return nil
}
