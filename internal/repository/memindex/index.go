// Package memindex is an in-memory vector index using brute-force cosine
// similarity. It backs the "memory" database driver for local runs and tests.
package memindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kailas-cloud/propindex/internal/domain"
	domindex "github.com/kailas-cloud/propindex/internal/domain/index"
	"github.com/kailas-cloud/propindex/internal/domain/search/filter"
)

type entry struct {
	domindex.Entry
	norm float64
}

// Index is safe for concurrent use. Writers replace whole entries under the
// write lock, so a reader never observes a partially updated entry.
type Index struct {
	dimension   int
	mu          sync.RWMutex
	collections map[string]map[string]*entry
}

// New creates an empty in-memory index with the given dimension.
func New(dimension int) (*Index, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive")
	}
	return &Index{
		dimension:   dimension,
		collections: make(map[string]map[string]*entry),
	}, nil
}

// Dimension returns the vector dimension.
func (x *Index) Dimension() int { return x.dimension }

// Ping always succeeds; it lets the memory driver stand in for the database health check.
func (x *Index) Ping(context.Context) error { return nil }

// GetOrCreateCollection creates the collection if it does not exist.
func (x *Index) GetOrCreateCollection(_ context.Context, name string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if _, ok := x.collections[name]; !ok {
		x.collections[name] = make(map[string]*entry)
	}
	return nil
}

// Upsert stores a copy of e, replacing any entry with the same ID. A missing
// collection is created, as a hash write would be on the Redis backend.
func (x *Index) Upsert(_ context.Context, collection string, e domindex.Entry) error {
	if err := e.Validate(x.dimension); err != nil {
		return err
	}
	vec := make([]float32, len(e.Vector))
	copy(vec, e.Vector)
	stored := &entry{
		Entry: domindex.Entry{
			ID:       e.ID,
			Vector:   vec,
			Document: e.Document,
			Metadata: e.Metadata.Clone(),
		},
		norm: norm(vec),
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	col, ok := x.collections[collection]
	if !ok {
		col = make(map[string]*entry)
		x.collections[collection] = col
	}
	col[e.ID] = stored
	return nil
}

// Delete removes an entry; absence is not an error.
func (x *Index) Delete(_ context.Context, collection, id string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if col, ok := x.collections[collection]; ok {
		delete(col, id)
	}
	return nil
}

// Get returns a copy of one entry.
func (x *Index) Get(_ context.Context, collection, id string) (domindex.Entry, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	col, ok := x.collections[collection]
	if !ok {
		return domindex.Entry{}, fmt.Errorf("collection %s: %w", collection, domain.ErrCollectionNotFound)
	}
	e, ok := col[id]
	if !ok {
		return domindex.Entry{}, fmt.Errorf("entry %s: %w", id, domain.ErrNotFound)
	}
	out := e.Entry
	out.Vector = append([]float32(nil), e.Vector...)
	out.Metadata = e.Metadata.Clone()
	return out, nil
}

// Count returns the number of entries in the collection.
func (x *Index) Count(_ context.Context, collection string) (int, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	col, ok := x.collections[collection]
	if !ok {
		return 0, fmt.Errorf("collection %s: %w", collection, domain.ErrCollectionNotFound)
	}
	return len(col), nil
}

// Query returns the k entries most similar to vector among those matching
// expr, best first. Ties break by ID for stable output.
func (x *Index) Query(
	_ context.Context, collection string, vector []float32, k int, expr filter.Expression,
) ([]domindex.Hit, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("query vector: got %d, want %d: %w", len(vector), x.dimension, domain.ErrVectorDimMismatch)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()
	col, ok := x.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s: %w", collection, domain.ErrCollectionNotFound)
	}
	if k <= 0 || len(col) == 0 {
		return nil, nil
	}

	qn := norm(vector)
	hits := make([]domindex.Hit, 0, len(col))
	for id, e := range col {
		if !expr.Matches(e.Metadata.Strings(), e.Metadata.Numerics()) {
			continue
		}
		hits = append(hits, domindex.Hit{
			ID:       id,
			Score:    cosine(vector, qn, e.Vector, e.norm),
			Document: e.Document,
			Metadata: e.Metadata.Clone(),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

// cosine returns cosine similarity clamped to [0,1], matching the Redis
// backend's 1 - COSINE distance.
func cosine(a []float32, an float64, b []float32, bn float64) float64 {
	if an == 0 || bn == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return max(0, min(1, dot/(an*bn)))
}
