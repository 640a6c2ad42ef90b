package chi

import (
	"context"

	domsearch "github.com/kailas-cloud/propindex/internal/domain/search"
	"github.com/kailas-cloud/propindex/internal/domain/project"
	collectionuc "github.com/kailas-cloud/propindex/internal/usecase/collection"
	healthuc "github.com/kailas-cloud/propindex/internal/usecase/health"
	"github.com/kailas-cloud/propindex/internal/usecase/syncer"
)

// Generator serves POST /embeddings/generate.
type Generator interface {
	Generate(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	Model() string
}

// Collections serves GET /collections/{name}.
type Collections interface {
	Get(ctx context.Context, name string) (collectionuc.Info, error)
}

// Syncer serves the indexing, resync and webhook routes.
type Syncer interface {
	Index(ctx context.Context, p *project.Project) (syncer.Result, error)
	Reindex(ctx context.Context, p *project.Project) (syncer.Result, error)
	Deindex(ctx context.Context, id int64) error
	Resync(ctx context.Context) (syncer.Summary, error)
	HandleWebhook(ctx context.Context, ev syncer.Event) syncer.Outcome
}

// Searcher serves POST /search.
type Searcher interface {
	Search(ctx context.Context, q domsearch.Query) (domsearch.Response, error)
}

// HealthChecker serves GET /health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
