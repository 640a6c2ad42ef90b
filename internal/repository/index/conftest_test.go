package index

import (
	"context"
	"testing"

	"github.com/kailas-cloud/propindex/internal/db"
	domindex "github.com/kailas-cloud/propindex/internal/domain/index"
	"github.com/kailas-cloud/propindex/internal/domain/metadata"
)

// mockStore implements the consumer interface for tests. Hashes are kept in
// a map so replace/delete semantics can be observed.
type mockStore struct {
	hashes map[string]map[string]string

	createIndexFn   func(ctx context.Context, def *db.IndexDefinition) error
	indexDocCountFn func(ctx context.Context, name string) (int, error)
	searchKNNFn     func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	replaceErr      error
	pingErr         error

	createCalls int
}

func (m *mockStore) Ping(context.Context) error { return m.pingErr }

func (m *mockStore) ReplaceHash(_ context.Context, key string, fields map[string]string) error {
	if m.replaceErr != nil {
		return m.replaceErr
	}
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	m.hashes[key] = cp
	return nil
}

func (m *mockStore) HGetAll(_ context.Context, key string) (map[string]string, error) {
	h, ok := m.hashes[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return h, nil
}

func (m *mockStore) Del(_ context.Context, key string) error {
	delete(m.hashes, key)
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	m.createCalls++
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexDocCount(ctx context.Context, name string) (int, error) {
	if m.indexDocCountFn != nil {
		return m.indexDocCountFn(ctx, name)
	}
	return len(m.hashes), nil
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{hashes: make(map[string]map[string]string)}
	return New(ms, "propindex:", 4, domindex.ProjectLayout()), ms
}

func testEntry(id string, city string, price float64) domindex.Entry {
	md := metadata.New()
	md.SetString("city", city)
	md.SetString("name", "Proyecto "+id)
	md.SetNumber("price_min", price)
	return domindex.Entry{
		ID:       id,
		Vector:   []float32{0.1, 0.2, 0.3, 0.4},
		Document: "documento " + id,
		Metadata: md,
	}
}
