// Package syncer keeps the vector index consistent with the canonical project store,
// both per record (API and webhook) and in bulk (resync).
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/propindex/internal/domain"
	domindex "github.com/kailas-cloud/propindex/internal/domain/index"
	"github.com/kailas-cloud/propindex/internal/domain/project"
	"github.com/kailas-cloud/propindex/internal/metrics"
	"github.com/kailas-cloud/propindex/internal/usecase/compose"
)

// DefaultConcurrency is the resync worker pool size when none is configured.
const DefaultConcurrency = 4

type generator interface {
	Generate(ctx context.Context, text string) ([]float32, error)
}

type compositor interface {
	Compose(ctx context.Context, p *project.Project) compose.Composition
}

type vectorIndex interface {
	GetOrCreateCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, e domindex.Entry) error
	Delete(ctx context.Context, collection, id string) error
}

type lister interface {
	ListPage(ctx context.Context, skip int) ([]json.RawMessage, error)
}

// Result describes one successful index operation.
type Result struct {
	DocumentID    string
	OwnerDegraded bool
}

// Service is the synchronization controller.
type Service struct {
	compositor compositor
	generator  generator
	index      vectorIndex
	lister     lister
	collection string
	entity     string
	pool       *ants.Pool
	resyncMu   sync.Mutex
	logger     *zap.Logger
}

// New creates the controller and its resync worker pool. lister may be nil when
// no canonical store is configured; Resync then fails with ErrUpstreamUnavailable.
// Call Release on shutdown.
func New(
	c compositor, g generator, idx vectorIndex, l lister,
	collection, entity string, concurrency int, logger *zap.Logger,
) (*Service, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	pool, err := ants.NewPool(concurrency)
	if err != nil {
		return nil, fmt.Errorf("create resync pool: %w", err)
	}
	return &Service{
		compositor: c,
		generator:  g,
		index:      idx,
		lister:     l,
		collection: collection,
		entity:     entity,
		pool:       pool,
		logger:     logger,
	}, nil
}

// Release stops the worker pool.
func (s *Service) Release() {
	s.pool.Release()
}

// Collection returns the collection this controller writes to.
func (s *Service) Collection() string { return s.collection }

// Index composes, embeds and upserts a project.
func (s *Service) Index(ctx context.Context, p *project.Project) (Result, error) {
	res, err := s.upsert(ctx, p)
	observe("index", err)
	return res, err
}

// Reindex replaces the indexed document of a project. The upsert is an atomic full
// replace, so fields dropped by the new version never survive and there is no
// window in which the project is missing from the index.
func (s *Service) Reindex(ctx context.Context, p *project.Project) (Result, error) {
	res, err := s.upsert(ctx, p)
	observe("reindex", err)
	return res, err
}

// Deindex removes a project. Removing an absent project succeeds.
func (s *Service) Deindex(ctx context.Context, id int64) error {
	err := s.delete(ctx, id)
	observe("deindex", err)
	return err
}

func (s *Service) upsert(ctx context.Context, p *project.Project) (Result, error) {
	comp := s.compositor.Compose(ctx, p)

	vec, err := s.generator.Generate(ctx, comp.SearchText)
	if err != nil {
		return Result{}, fmt.Errorf("embed project %d: %w", p.ID, err)
	}

	if err := s.index.GetOrCreateCollection(ctx, s.collection); err != nil {
		return Result{}, fmt.Errorf("collection %s: %w", s.collection, err)
	}

	docID := project.DocumentID(s.entity, p.ID)
	entry := domindex.Entry{
		ID:       docID,
		Vector:   vec,
		Document: comp.SearchText,
		Metadata: comp.Metadata,
	}
	if err := s.index.Upsert(ctx, s.collection, entry); err != nil {
		return Result{}, fmt.Errorf("upsert project %d: %w", p.ID, err)
	}

	s.logger.Debug("Project indexed",
		zap.Int64("project_id", p.ID),
		zap.String("document_id", docID),
		zap.Stringer("schema", p.Schema),
		zap.Bool("owner_degraded", comp.Owner.Degraded),
	)
	return Result{DocumentID: docID, OwnerDegraded: comp.Owner.Degraded}, nil
}

func (s *Service) delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return fmt.Errorf("project id must be positive: %w", domain.ErrValidation)
	}
	docID := project.DocumentID(s.entity, id)
	if err := s.index.Delete(ctx, s.collection, docID); err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) {
			return nil
		}
		return fmt.Errorf("delete project %d: %w", id, err)
	}
	return nil
}

func observe(action string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.SyncOperationsTotal.WithLabelValues(action, status).Inc()
}
