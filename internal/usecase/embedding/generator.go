package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/propindex/internal/domain"
)

// DefaultTimeout bounds a single embedding call when none is configured.
const DefaultTimeout = 10 * time.Second

// Generator is the fixed-dimension text vectorizer shared by indexing and search.
// It is built once at startup and injected wherever vectors are needed.
type Generator struct {
	embedder  domain.Embedder
	model     string
	dimension int
	timeout   time.Duration
}

// NewGenerator wraps the embedder chain. timeout <= 0 selects DefaultTimeout.
func NewGenerator(e domain.Embedder, model string, dimension int, timeout time.Duration) *Generator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Generator{embedder: e, model: model, dimension: dimension, timeout: timeout}
}

// Generate embeds text. Empty text is a validation error, a wrong-sized vector is
// ErrVectorDimMismatch, and an expired deadline is reported as a provider failure.
func (g *Generator) Generate(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text is required: %w", domain.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	result, err := g.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrEmbeddingProviderError) {
			return nil, fmt.Errorf("embedding timed out after %s: %w", g.timeout, domain.ErrEmbeddingProviderError)
		}
		return nil, fmt.Errorf("generate embedding: %w", err)
	}
	if len(result.Embedding) != g.dimension {
		return nil, fmt.Errorf("embedding has %d dims, expected %d: %w",
			len(result.Embedding), g.dimension, domain.ErrVectorDimMismatch)
	}

	domain.UsageFromContext(ctx).AddTokens(result.TotalTokens)
	return result.Embedding, nil
}

// Dimension returns the configured vector length.
func (g *Generator) Dimension() int { return g.dimension }

// Model returns the embedding model name.
func (g *Generator) Model() string { return g.model }

// HealthCheck probes the provider when the chain supports it.
func (g *Generator) HealthCheck(ctx context.Context) error {
	hc, ok := g.embedder.(domain.HealthChecker)
	if !ok {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()
	if err := hc.HealthCheck(ctx); err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	return nil
}
