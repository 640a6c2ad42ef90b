package propindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	dbRedis "github.com/kailas-cloud/propindex/internal/db/redis"
	"github.com/kailas-cloud/propindex/internal/domain"
	domcol "github.com/kailas-cloud/propindex/internal/domain/collection"
	domindex "github.com/kailas-cloud/propindex/internal/domain/index"
	"github.com/kailas-cloud/propindex/internal/domain/project"
	domsearch "github.com/kailas-cloud/propindex/internal/domain/search"
	"github.com/kailas-cloud/propindex/internal/domain/search/filter"
	indexrepo "github.com/kailas-cloud/propindex/internal/repository/index"
	"github.com/kailas-cloud/propindex/internal/repository/memindex"
	"github.com/kailas-cloud/propindex/internal/transport/projects"
	collectionuc "github.com/kailas-cloud/propindex/internal/usecase/collection"
	composeuc "github.com/kailas-cloud/propindex/internal/usecase/compose"
	embeddinguc "github.com/kailas-cloud/propindex/internal/usecase/embedding"
	healthuc "github.com/kailas-cloud/propindex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/propindex/internal/usecase/search"
	"github.com/kailas-cloud/propindex/internal/usecase/syncer"
)

const defaultReadinessTimeout = 10 * time.Second

// Internal interfaces for substitution in tests.
type syncUseCase interface {
	Index(ctx context.Context, p *project.Project) (syncer.Result, error)
	Reindex(ctx context.Context, p *project.Project) (syncer.Result, error)
	Deindex(ctx context.Context, id int64) error
	Resync(ctx context.Context) (syncer.Summary, error)
}

type searchUseCase interface {
	Search(ctx context.Context, q domsearch.Query) (domsearch.Response, error)
}

type collectionUseCase interface {
	Get(ctx context.Context, name string) (collectionuc.Info, error)
}

type vectorIndex interface {
	Ping(ctx context.Context) error
	GetOrCreateCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, e domindex.Entry) error
	Delete(ctx context.Context, collection, id string) error
	Count(ctx context.Context, collection string) (int, error)
	Query(ctx context.Context, collection string, vector []float32, k int, expr filter.Expression) ([]domindex.Hit, error)
}

// Client is the propindex SDK entry point.
type Client struct {
	index      vectorIndex
	syncSvc    syncUseCase
	searchSvc  searchUseCase
	collSvc    collectionUseCase
	healthSvc  healthUseCase
	collection string
	obs        *observer
	closers    []func()
}

// Info describes the collection the client writes to.
type Info struct {
	Name      string
	Count     int
	Dimension int
	Model     string
}

// New creates a Client, connects to the store and ensures the collection exists.
// The provided context is used for the readiness check and the collection setup.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	vec := domain.DefaultVectorConfig()
	cfg := &clientConfig{
		model:            vec.Model,
		vectorDimensions: vec.Dimensions,
		collection:       domain.DefaultCollection,
		keyPrefix:        domain.KeyPrefix,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	if cfg.embedder == nil {
		return nil, errors.New("propindex: embedder required (use WithEmbedder)")
	}
	if err := domcol.ValidateName(cfg.collection); err != nil {
		return nil, fmt.Errorf("propindex: %w", err)
	}

	c := &Client{collection: cfg.collection}
	idx, err := c.createIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	c.index = idx

	obs, err := newObserver(cfg.logger, cfg.metricsReg, cfg.collection)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.obs = obs

	if err := c.wire(ctx, cfg); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) createIndex(ctx context.Context, cfg *clientConfig) (vectorIndex, error) {
	switch cfg.driver {
	case "valkey", "redis":
		store, err := dbRedis.NewStore(dbRedis.Config{Addrs: cfg.addrs, Password: cfg.password})
		if err != nil {
			return nil, fmt.Errorf("propindex: create %s store: %w", cfg.driver, err)
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("propindex: database not ready: %w", err)
		}
		c.closers = append(c.closers, store.Close)
		return indexrepo.New(store, cfg.keyPrefix, cfg.vectorDimensions, domindex.ProjectLayout()).
			WithHNSW(indexrepo.HNSWConfig{M: cfg.hnswM, EFConstruct: cfg.hnswEFConstruct}), nil
	case "memory":
		idx, err := memindex.New(cfg.vectorDimensions)
		if err != nil {
			return nil, fmt.Errorf("propindex: create memory index: %w", err)
		}
		return idx, nil
	case "":
		return nil, errors.New("propindex: store required (use WithValkey, WithRedis or WithMemory)")
	default:
		return nil, fmt.Errorf("propindex: unknown driver %q", cfg.driver)
	}
}

func (c *Client) wire(ctx context.Context, cfg *clientConfig) error {
	log := zap.NewNop()
	gen := embeddinguc.NewGenerator(&embedderAdapter{inner: cfg.embedder}, cfg.model, cfg.vectorDimensions, cfg.embedTimeout)

	var owners composeuc.OwnerLookup
	if cfg.owners != nil {
		owners = &ownerAdapter{inner: cfg.owners}
	}

	var (
		hydrator searchuc.Hydrator
		lister   interface {
			ListPage(ctx context.Context, skip int) ([]json.RawMessage, error)
		}
		canonicalPing healthuc.Pinger
	)
	if cfg.canonicalURL != "" {
		canonical := projects.NewClient(cfg.canonicalURL)
		hydrator, lister, canonicalPing = canonical, canonical, canonical
	}

	syncSvc, err := syncer.New(composeuc.New(owners, 0, log), gen, c.index, lister,
		cfg.collection, domain.DefaultEntity, cfg.concurrency, log)
	if err != nil {
		return fmt.Errorf("propindex: %w", err)
	}
	c.closers = append(c.closers, syncSvc.Release)

	collSvc := collectionuc.New(c.index, gen)
	if err := collSvc.Ensure(ctx, cfg.collection); err != nil {
		return fmt.Errorf("propindex: ensure collection: %w", err)
	}

	c.syncSvc = syncSvc
	c.searchSvc = searchuc.New(gen, c.index, hydrator, domain.DefaultEntity, searchuc.Options{}, log)
	c.collSvc = collSvc
	c.healthSvc = healthuc.New(c.index, gen, canonicalPing)
	return nil
}

// Close releases all resources.
func (c *Client) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// Ping checks vector store connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.index.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Index composes, embeds and stores one canonical record (either schema).
func (c *Client) Index(ctx context.Context, record []byte) (res IndexResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("index", start, err) }()

	p, err := project.Decode(record)
	if err != nil {
		return IndexResult{}, err //nolint:wrapcheck // validation error carries the field
	}
	r, err := c.syncSvc.Index(ctx, &p)
	if err != nil {
		return IndexResult{}, err //nolint:wrapcheck // already wrapped by the controller
	}
	return IndexResult{DocumentID: r.DocumentID, OwnerDegraded: r.OwnerDegraded}, nil
}

// Update replaces the indexed entry of project id; the id argument wins over
// any id in record.
func (c *Client) Update(ctx context.Context, id int64, record []byte) (res IndexResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("update", start, err) }()

	p, err := project.DecodeWithID(record, id)
	if err != nil {
		return IndexResult{}, err //nolint:wrapcheck // validation error carries the field
	}
	r, err := c.syncSvc.Reindex(ctx, &p)
	if err != nil {
		return IndexResult{}, err //nolint:wrapcheck // already wrapped by the controller
	}
	return IndexResult{DocumentID: r.DocumentID, OwnerDegraded: r.OwnerDegraded}, nil
}

// Delete removes project id from the index. Absence is not an error.
func (c *Client) Delete(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", start, err) }()

	return c.syncSvc.Deindex(ctx, id) //nolint:wrapcheck // already wrapped by the controller
}

// Resync reindexes every record of the canonical store. Requires WithCanonicalStore.
func (c *Client) Resync(ctx context.Context) (sum ResyncSummary, err error) {
	start := time.Now()
	defer func() { c.obs.observe("resync", start, err) }()

	s, err := c.syncSvc.Resync(ctx)
	if err != nil {
		return ResyncSummary{}, err //nolint:wrapcheck // already wrapped by the controller
	}
	return summaryFromDomain(s), nil
}

// Search ranks indexed projects against q.
func (c *Client) Search(ctx context.Context, q Query) (resp Response, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	dq, err := q.toDomain(c.collection)
	if err != nil {
		return Response{}, err
	}
	r, err := c.searchSvc.Search(ctx, dq)
	if err != nil {
		return Response{}, err //nolint:wrapcheck // already wrapped by the ranker
	}
	return responseFromDomain(r), nil
}

// Info reports the collection size and embedding configuration.
func (c *Client) Info(ctx context.Context) (info Info, err error) {
	start := time.Now()
	defer func() { c.obs.observe("info", start, err) }()

	i, err := c.collSvc.Get(ctx, c.collection)
	if err != nil {
		return Info{}, err //nolint:wrapcheck // already wrapped by the service
	}
	return Info(i), nil
}

// embedderAdapter wraps public Embedder to satisfy internal domain.Embedder.
type embedderAdapter struct {
	inner Embedder
}

func (a *embedderAdapter) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	r, err := a.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed: %w: %w", domain.ErrEmbeddingProviderError, err)
	}
	return domain.EmbeddingResult{
		Embedding:    r.Embedding,
		PromptTokens: r.PromptTokens,
		TotalTokens:  r.TotalTokens,
	}, nil
}

// ownerAdapter wraps public OwnerLookup to satisfy the compositor.
type ownerAdapter struct {
	inner OwnerLookup
}

func (a *ownerAdapter) Lookup(ctx context.Context, nit string) (project.Owner, error) {
	o, err := a.inner.Lookup(ctx, nit)
	if err != nil {
		return project.Owner{}, fmt.Errorf("owner %s: %w", nit, err)
	}
	return project.Owner{NIT: o.NIT, Name: o.Name, Email: o.Email}, nil
}
