package search

import (
	"context"

	domindex "github.com/kailas-cloud/propindex/internal/domain/index"
	"github.com/kailas-cloud/propindex/internal/domain/project"
	"github.com/kailas-cloud/propindex/internal/domain/search/filter"
)

// Generator vectorizes the composite query text.
type Generator interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex runs the nearest-neighbor query.
type VectorIndex interface {
	Query(
		ctx context.Context, collection string, vector []float32, k int, expr filter.Expression,
	) ([]domindex.Hit, error)
}

// Hydrator fetches the authoritative record for a candidate.
type Hydrator interface {
	Get(ctx context.Context, id int64) (project.Project, error)
}
