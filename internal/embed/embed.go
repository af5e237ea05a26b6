// Package embed wraps a Genkit embedder behind a fixed-dimensionality
// provider used by the retrieval pipeline and the ingestion path.
//
// The provider is stateless and safe for concurrent use by multiple in-flight
// requests; per-call timeouts are the caller's responsibility.
package embed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"google.golang.org/genai"
)

// Sentinel errors for embedding operations.
var (
	// ErrEmptyInput indicates the input text was empty or whitespace-only.
	// No upstream call is made in this case.
	ErrEmptyInput = errors.New("empty input text")

	// ErrUnavailable indicates the upstream embedding service failed.
	ErrUnavailable = errors.New("embedding service unavailable")

	// ErrDimensionMismatch indicates the upstream returned a vector whose
	// length does not match the configured dimensionality. This is a
	// configuration error, not a per-request condition to recover from.
	ErrDimensionMismatch = errors.New("embedding dimensionality mismatch")
)

// Provider converts text to fixed-length dense vectors.
type Provider struct {
	embedder ai.Embedder
	dims     int
	logger   *slog.Logger
}

// NewProvider creates a Provider with the given embedder and output
// dimensionality. The dimensionality is fixed at startup and must match the
// backing stores' provisioned vector width.
func NewProvider(embedder ai.Embedder, dims int, logger *slog.Logger) (*Provider, error) {
	if embedder == nil {
		return nil, errors.New("embedder is required")
	}
	if dims <= 0 {
		return nil, fmt.Errorf("dims must be positive, got %d", dims)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{embedder: embedder, dims: dims, logger: logger}, nil
}

// Dims returns the configured embedding dimensionality.
func (p *Provider) Dims() int {
	return p.dims
}

// Embed generates a vector embedding for the given text.
// Empty or whitespace-only text returns ErrEmptyInput without calling the
// upstream service. Transport failures are wrapped in ErrUnavailable.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}

	// gemini-embedding-001 truncates to the requested dimensionality
	// (Matryoshka Representation Learning).
	dim := int32(p.dims)
	resp, err := p.embedder.Embed(ctx, &ai.EmbedRequest{
		Input:   []*ai.Document{ai.DocumentFromText(text, nil)},
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding response", ErrUnavailable)
	}

	vec := resp.Embeddings[0].Embedding
	if len(vec) != p.dims {
		return nil, fmt.Errorf("%w: configured %d, got %d", ErrDimensionMismatch, p.dims, len(vec))
	}

	p.logger.Debug("embedded text", "chars", len(text), "dims", len(vec))
	return vec, nil
}
