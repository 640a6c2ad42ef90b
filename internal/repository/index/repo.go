// Package index implements the vector index on Redis / Valkey FT.* indexes.
package index

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/kailas-cloud/propindex/internal/db"
	"github.com/kailas-cloud/propindex/internal/domain"
	domindex "github.com/kailas-cloud/propindex/internal/domain/index"
	"github.com/kailas-cloud/propindex/internal/domain/metadata"
	"github.com/kailas-cloud/propindex/internal/domain/search/filter"
)

// Reserved hash fields. Metadata keys may not start with "__".
const (
	fieldContent  = "__content"
	fieldVector   = "__vector"
	fieldNumerics = "__numerics"
	vectorAlias   = "vector"
)

// store is the consumer interface for the index (ISP).
type store interface {
	Ping(ctx context.Context) error
	ReplaceHash(ctx context.Context, key string, fields map[string]string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexDocCount(ctx context.Context, name string) (int, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
}

// HNSWConfig HNSW index parameters.
type HNSWConfig struct {
	M           int
	EFConstruct int
}

// Repo stores one hash per entry under {prefix}{collection}:{id} and one FT
// index per collection named {prefix}{collection}:idx.
type Repo struct {
	store     store
	prefix    string
	dimension int
	layout    domindex.Layout
	hnsw      HNSWConfig

	mu      sync.Mutex
	created map[string]bool
}

// New creates an index repository.
func New(s store, keyPrefix string, dimension int, layout domindex.Layout) *Repo {
	if keyPrefix == "" {
		keyPrefix = domain.KeyPrefix
	}
	return &Repo{
		store:     s,
		prefix:    keyPrefix,
		dimension: dimension,
		layout:    layout,
		hnsw:      HNSWConfig{M: 16, EFConstruct: 200},
		created:   make(map[string]bool),
	}
}

// WithHNSW configures HNSW index parameters.
func (r *Repo) WithHNSW(cfg HNSWConfig) *Repo {
	if cfg.M > 0 {
		r.hnsw.M = cfg.M
	}
	if cfg.EFConstruct > 0 {
		r.hnsw.EFConstruct = cfg.EFConstruct
	}
	return r
}

// Dimension returns the vector dimension of every collection.
func (r *Repo) Dimension() int { return r.dimension }

// Ping checks the backing store.
func (r *Repo) Ping(ctx context.Context) error {
	if err := r.store.Ping(ctx); err != nil {
		return fmt.Errorf("index store: %w", err)
	}
	return nil
}

// GetOrCreateCollection creates the FT index for a collection. An existing
// index is success.
func (r *Repo) GetOrCreateCollection(ctx context.Context, name string) error {
	r.mu.Lock()
	done := r.created[name]
	r.mu.Unlock()
	if done {
		return nil
	}

	def, err := r.buildIndex(name)
	if err != nil {
		return fmt.Errorf("build index %s: %w", name, err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index %s: %w", name, err)
	}

	r.mu.Lock()
	r.created[name] = true
	r.mu.Unlock()
	return nil
}

// Upsert writes the entry, fully replacing any previous entry with the same ID.
func (r *Repo) Upsert(ctx context.Context, collection string, e domindex.Entry) error {
	if err := e.Validate(r.dimension); err != nil {
		return err
	}
	fields, err := encodeEntry(e)
	if err != nil {
		return err
	}
	key := r.docKey(collection, e.ID)
	if err := r.store.ReplaceHash(ctx, key, fields); err != nil {
		return fmt.Errorf("replace %s: %w", key, err)
	}
	return nil
}

// Delete removes the entry. Absence is not an error.
func (r *Repo) Delete(ctx context.Context, collection, id string) error {
	key := r.docKey(collection, id)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// Get returns one entry by ID.
func (r *Repo) Get(ctx context.Context, collection, id string) (domindex.Entry, error) {
	key := r.docKey(collection, id)
	fields, err := r.store.HGetAll(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domindex.Entry{}, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
		}
		return domindex.Entry{}, fmt.Errorf("hgetall %s: %w", key, err)
	}
	return decodeEntry(id, fields, true), nil
}

// Count returns the number of entries in the collection.
func (r *Repo) Count(ctx context.Context, collection string) (int, error) {
	n, err := r.store.IndexDocCount(ctx, r.indexName(collection))
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return 0, fmt.Errorf("count %s: %w", collection, domain.ErrCollectionNotFound)
		}
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return n, nil
}

// Query returns up to k nearest entries, best match first.
func (r *Repo) Query(
	ctx context.Context, collection string, vector []float32, k int, expr filter.Expression,
) ([]domindex.Hit, error) {
	if len(vector) != r.dimension {
		return nil, fmt.Errorf("query vector: got %d, want %d: %w", len(vector), r.dimension, domain.ErrVectorDimMismatch)
	}
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName: r.indexName(collection),
		Filters:   expr,
		Vector:    vector,
		K:         k,
	})
	if err != nil {
		if errors.Is(err, db.ErrIndexNotFound) {
			return nil, fmt.Errorf("query %s: %w", collection, domain.ErrCollectionNotFound)
		}
		return nil, fmt.Errorf("query %s: %w", collection, err)
	}
	if sr == nil {
		return nil, nil
	}

	prefix := r.collectionPrefix(collection)
	hits := make([]domindex.Hit, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, prefix)
		e := decodeEntry(id, entry.Fields, false)
		hits = append(hits, domindex.Hit{
			ID:       id,
			Score:    entry.Score,
			Document: e.Document,
			Metadata: e.Metadata,
		})
	}
	return hits, nil
}

func (r *Repo) buildIndex(collection string) (*db.IndexDefinition, error) {
	return db.NewIndex(r.indexName(collection)).
		Prefix(r.collectionPrefix(collection)).
		Tag(r.layout.Tags...).
		Numeric(r.layout.Numerics...).
		VectorHNSW(fieldVector, vectorAlias, r.dimension, db.DistanceCosine, r.hnsw.M, r.hnsw.EFConstruct).
		Build()
}

func (r *Repo) collectionPrefix(collection string) string {
	return r.prefix + collection + ":"
}

func (r *Repo) docKey(collection, id string) string {
	return r.collectionPrefix(collection) + id
}

func (r *Repo) indexName(collection string) string {
	return r.prefix + collection + ":idx"
}

func encodeEntry(e domindex.Entry) (map[string]string, error) {
	fields := make(map[string]string, e.Metadata.Len()+3)
	fields[fieldContent] = e.Document
	fields[fieldVector] = db.EncodeVector(e.Vector)

	for k, v := range e.Metadata.Strings() {
		if strings.HasPrefix(k, "__") {
			return nil, fmt.Errorf("metadata key %q is reserved: %w", k, domain.ErrValidation)
		}
		fields[k] = v
	}
	numericKeys := make([]string, 0, len(e.Metadata.Numerics()))
	for k, v := range e.Metadata.Numerics() {
		if strings.HasPrefix(k, "__") {
			return nil, fmt.Errorf("metadata key %q is reserved: %w", k, domain.ErrValidation)
		}
		fields[k] = strconv.FormatFloat(v, 'f', -1, 64)
		numericKeys = append(numericKeys, k)
	}
	fields[fieldNumerics] = strings.Join(numericKeys, ",")
	return fields, nil
}

func decodeEntry(id string, fields map[string]string, withVector bool) domindex.Entry {
	numeric := make(map[string]bool)
	for _, k := range strings.Split(fields[fieldNumerics], ",") {
		if k != "" {
			numeric[k] = true
		}
	}

	e := domindex.Entry{ID: id, Document: fields[fieldContent]}
	if withVector {
		e.Vector = db.DecodeVector(fields[fieldVector])
	}

	strs := make(map[string]string)
	nums := make(map[string]float64)
	for k, v := range fields {
		if strings.HasPrefix(k, "__") {
			continue
		}
		if numeric[k] {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				nums[k] = f
				continue
			}
		}
		strs[k] = v
	}
	e.Metadata = metadata.Reconstruct(strs, nums)
	return e
}
