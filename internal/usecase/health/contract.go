package health

import "context"

// Pinger checks a dependency that answers to a ping (vector store, canonical store).
type Pinger interface {
	Ping(ctx context.Context) error
}

// EmbeddingChecker checks embedding provider availability.
type EmbeddingChecker interface {
	HealthCheck(ctx context.Context) error
}
