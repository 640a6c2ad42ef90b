package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"strings"
	gosync "sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/propindex/internal/domain"
	domindex "github.com/kailas-cloud/propindex/internal/domain/index"
	"github.com/kailas-cloud/propindex/internal/repository/memindex"
	"github.com/kailas-cloud/propindex/internal/usecase/compose"
)

const (
	testDim        = 8
	testCollection = "real_estate_projects"
)

// mockGenerator hashes words into a small bag-of-words vector.
type mockGenerator struct {
	mu     gosync.Mutex
	failOn string
	calls  int
}

func (m *mockGenerator) Generate(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return nil, domain.ErrEmbeddingProviderError
	}
	v := make([]float32, testDim)
	for _, w := range strings.Fields(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%testDim]++
	}
	return v, nil
}

// mockLister serves records in pages.
type mockLister struct {
	records    []json.RawMessage
	pageSize   int
	failAt     int  // skip offset that fails; -1 never
	maxLimit   int  // server-side cap on the page size; 0 none
	ignoreSkip bool // always serve from the start
	calls      int
}

func (m *mockLister) ListPage(_ context.Context, skip int) ([]json.RawMessage, error) {
	m.calls++
	if m.calls > 100 {
		return nil, errors.New("listing never ended")
	}
	if skip == m.failAt {
		return nil, domain.ErrUpstreamUnavailable
	}
	if m.ignoreSkip {
		skip = 0
	}
	if skip >= len(m.records) {
		return nil, nil
	}
	limit := m.pageSize
	if m.maxLimit > 0 {
		limit = min(limit, m.maxLimit)
	}
	end := min(skip+limit, len(m.records))
	return m.records[skip:end], nil
}

// failingIndex wraps memindex and fails upserts for one ID.
type failingIndex struct {
	*memindex.Index
	failID string
}

var errIndexDown = errors.New("index down")

func (f *failingIndex) Upsert(ctx context.Context, collection string, e domindex.Entry) error {
	if e.ID == f.failID {
		return errIndexDown
	}
	return f.Index.Upsert(ctx, collection, e)
}

func rawProject(id int, name, city string, amenities ...string) json.RawMessage {
	b, _ := json.Marshal(map[string]any{
		"id":          id,
		"name":        name,
		"location":    map[string]any{"city": city},
		"price_info":  map[string]any{"min_price": 100000000, "max_price": 200000000},
		"unit_info":   map[string]any{"total_units": 10, "available_units": 5},
		"amenities":   amenities,
		"description": "proyecto " + name,
	})
	return b
}

func newTestService(t *testing.T, idx vectorIndex, gen generator, l lister) *Service {
	t.Helper()
	s, err := New(compose.New(nil, 0, zap.NewNop()), gen, idx, l, testCollection, "project", 4, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Release)
	return s
}

func newMemIndex(t *testing.T) *memindex.Index {
	t.Helper()
	idx, err := memindex.New(testDim)
	if err != nil {
		t.Fatalf("memindex.New: %v", err)
	}
	return idx
}
