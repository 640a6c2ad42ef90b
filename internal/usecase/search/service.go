// Package search answers project queries: composite embedding, k-NN retrieval,
// hydration against the canonical store, and deterministic business ranking.
package search

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/propindex/internal/domain"
	domindex "github.com/kailas-cloud/propindex/internal/domain/index"
	"github.com/kailas-cloud/propindex/internal/domain/project"
	domsearch "github.com/kailas-cloud/propindex/internal/domain/search"
	"github.com/kailas-cloud/propindex/internal/domain/search/filter"
	"github.com/kailas-cloud/propindex/internal/metrics"
	"github.com/kailas-cloud/propindex/internal/usecase/compose"
)

// Defaults for retrieval and hydration.
const (
	DefaultCandidatePool = 50
	DefaultConcurrency   = 8
)

// Options tune retrieval. Zero values select the defaults.
type Options struct {
	// CandidatePool is the minimum k sent to the index, so hard filters have
	// enough candidates to work with.
	CandidatePool int
	// HydrationConcurrency bounds parallel canonical-store fetches.
	HydrationConcurrency int
	// PrefilterPrice pushes the price range into the index query.
	PrefilterPrice bool
	Weights        domsearch.Weights
}

// Service is the query ranker.
type Service struct {
	gen      Generator
	index    VectorIndex
	hydrator Hydrator
	ranker   *domsearch.Ranker
	entity   string
	opts     Options
	logger   *zap.Logger
}

// New creates the search service. hydrator may be nil to rank on index metadata only.
func New(gen Generator, idx VectorIndex, hydrator Hydrator, entity string, opts Options, logger *zap.Logger) *Service {
	if opts.CandidatePool <= 0 {
		opts.CandidatePool = DefaultCandidatePool
	}
	if opts.HydrationConcurrency <= 0 {
		opts.HydrationConcurrency = DefaultConcurrency
	}
	if opts.Weights == (domsearch.Weights{}) {
		opts.Weights = domsearch.DefaultWeights()
	}
	return &Service{
		gen:      gen,
		index:    idx,
		hydrator: hydrator,
		ranker:   domsearch.NewRanker(opts.Weights),
		entity:   entity,
		opts:     opts,
		logger:   logger,
	}
}

// Search runs the full query flow. A failing vector index is an error, never an
// empty result; a failing canonical store degrades to index metadata.
func (s *Service) Search(ctx context.Context, q domsearch.Query) (domsearch.Response, error) {
	resp, err := s.search(ctx, q)
	switch {
	case err != nil:
		metrics.SearchRequestsTotal.WithLabelValues("error").Inc()
	case resp.Degraded:
		metrics.SearchRequestsTotal.WithLabelValues("degraded").Inc()
	default:
		metrics.SearchRequestsTotal.WithLabelValues("ok").Inc()
	}
	return resp, err
}

func (s *Service) search(ctx context.Context, q domsearch.Query) (domsearch.Response, error) {
	text := domsearch.CompositeText(q.Text, q.Filters)

	vec, err := s.gen.Generate(ctx, text)
	if err != nil {
		return domsearch.Response{}, fmt.Errorf("embed query: %w", err)
	}

	expr, err := s.prefilter(q.Filters)
	if err != nil {
		return domsearch.Response{}, err
	}

	k := max(q.MaxResults, s.opts.CandidatePool)
	hits, err := s.index.Query(ctx, q.Collection, vec, k, expr)
	if err != nil {
		if errors.Is(err, domain.ErrCollectionNotFound) || errors.Is(err, domain.ErrVectorDimMismatch) {
			return domsearch.Response{}, fmt.Errorf("vector search: %w", err)
		}
		return domsearch.Response{}, fmt.Errorf("vector search: %w: %w", domain.ErrUpstreamUnavailable, err)
	}

	hits = AboveThreshold(hits, q.Threshold)

	cands, degraded := s.hydrate(ctx, hits)
	results := s.ranker.Rank(cands, q.Filters, q.Threshold, q.MaxResults)

	s.logger.Debug("Search completed",
		zap.String("collection", q.Collection),
		zap.String("composite_text", text),
		zap.Int("hits", len(hits)),
		zap.Int("candidates", len(cands)),
		zap.Int("results", len(results)),
		zap.Bool("degraded", degraded),
	)

	return domsearch.Response{
		Results:    results,
		Query:      q.Text,
		Collection: q.Collection,
		Degraded:   degraded,
	}, nil
}

// AboveThreshold keeps hits with similarity >= t, preserving order.
func AboveThreshold(hits []domindex.Hit, t float64) []domindex.Hit {
	out := make([]domindex.Hit, 0, len(hits))
	for _, h := range hits {
		if h.Score >= t {
			out = append(out, h)
		}
	}
	return out
}

func (s *Service) prefilter(f domsearch.Filters) (filter.Expression, error) {
	if !s.opts.PrefilterPrice || !f.Price.IsSet() {
		return filter.Expression{}, nil
	}
	lo, hi := f.Price.Bounds()
	c, err := filter.Between("price_min", lo, hi)
	if err != nil {
		return filter.Expression{}, fmt.Errorf("price prefilter: %w: %w", domain.ErrValidation, err)
	}
	return filter.Expression{}.And(c), nil
}

type hydration int

const (
	hydratedOK hydration = iota
	hydratedMissing
	hydratedFallback
)

// hydrate resolves every hit against the canonical store with bounded fan-out.
// Missing records are dropped; unreachable ones fall back to index metadata and
// mark the response degraded.
func (s *Service) hydrate(ctx context.Context, hits []domindex.Hit) ([]domsearch.Candidate, bool) {
	cands := make([]domsearch.Candidate, len(hits))
	states := make([]hydration, len(hits))

	for i, h := range hits {
		facts, err := domsearch.FactsFromMetadata(h.Metadata)
		if err != nil {
			s.logger.Warn("Ignoring unreadable index metadata",
				zap.String("id", h.ID), zap.Error(err))
		}
		cands[i] = domsearch.Candidate{
			Hit:       h,
			ProjectID: s.projectID(h),
			Facts:     facts,
		}
	}

	if s.hydrator == nil {
		return cands, false
	}

	var g errgroup.Group
	g.SetLimit(s.opts.HydrationConcurrency)
	for i := range cands {
		g.Go(func() error {
			states[i] = s.hydrateOne(ctx, &cands[i])
			return nil
		})
	}
	_ = g.Wait()

	out := cands[:0]
	degraded := false
	for i := range cands {
		switch states[i] {
		case hydratedMissing:
			continue
		case hydratedFallback:
			degraded = true
		}
		out = append(out, cands[i])
	}
	return out, degraded
}

func (s *Service) hydrateOne(ctx context.Context, c *domsearch.Candidate) hydration {
	if c.ProjectID <= 0 {
		metrics.HydrationTotal.WithLabelValues("fallback").Inc()
		return hydratedFallback
	}

	p, err := s.hydrator.Get(ctx, c.ProjectID)
	switch {
	case err == nil:
		metrics.HydrationTotal.WithLabelValues("ok").Inc()
		c.Facts = domsearch.FactsFromProject(&p)
		owner := project.Owner{Name: c.Hit.Metadata.String("owner_name")}
		c.Hit.Metadata = compose.Metadata(&p, owner)
		return hydratedOK
	case errors.Is(err, domain.ErrNotFound):
		metrics.HydrationTotal.WithLabelValues("not_found").Inc()
		s.logger.Info("Dropping candidate missing from canonical store",
			zap.String("id", c.Hit.ID), zap.Int64("project_id", c.ProjectID))
		return hydratedMissing
	default:
		metrics.HydrationTotal.WithLabelValues("fallback").Inc()
		s.logger.Warn("Hydration failed, using index metadata",
			zap.String("id", c.Hit.ID), zap.Int64("project_id", c.ProjectID), zap.Error(err))
		return hydratedFallback
	}
}

func (s *Service) projectID(h domindex.Hit) int64 {
	if id, err := project.ParseDocumentID(s.entity, h.ID); err == nil {
		return id
	}
	return int64(h.Metadata.Number("project_id"))
}
