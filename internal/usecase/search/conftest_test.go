package search

import (
	"context"
	gosync "sync"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/propindex/internal/domain"
	domindex "github.com/kailas-cloud/propindex/internal/domain/index"
	"github.com/kailas-cloud/propindex/internal/domain/project"
	"github.com/kailas-cloud/propindex/internal/domain/search/filter"
	"github.com/kailas-cloud/propindex/internal/repository/memindex"
	"github.com/kailas-cloud/propindex/internal/usecase/compose"
)

const testCollection = "real_estate_projects"

type mockGenerator struct {
	vec  []float32
	err  error
	text string
}

func (m *mockGenerator) Generate(_ context.Context, text string) ([]float32, error) {
	m.text = text
	return m.vec, m.err
}

type mockHydrator struct {
	mu       gosync.Mutex
	projects map[int64]project.Project
	errs     map[int64]error
	calls    int
}

func (m *mockHydrator) Get(_ context.Context, id int64) (project.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err, ok := m.errs[id]; ok {
		return project.Project{}, err
	}
	p, ok := m.projects[id]
	if !ok {
		return project.Project{}, domain.ErrNotFound
	}
	return p, nil
}

// recordingIndex captures the query arguments.
type recordingIndex struct {
	hits []domindex.Hit
	err  error
	k    int
	expr filter.Expression
}

func (r *recordingIndex) Query(
	_ context.Context, _ string, _ []float32, k int, expr filter.Expression,
) ([]domindex.Hit, error) {
	r.k, r.expr = k, expr
	return r.hits, r.err
}

func torresDelSol() project.Project {
	return project.Project{
		ID:        1,
		Name:      "Torres del Sol",
		Location:  project.Location{City: "Bogotá", Department: "Cundinamarca"},
		Price:     project.Price{Min: 200000000, Max: 350000000},
		Units:     &project.Units{Total: 100, Available: 50},
		Amenities: []string{"piscina", "gimnasio"},
	}
}

func conjuntoVerde() project.Project {
	return project.Project{
		ID:        2,
		Name:      "Conjunto Verde",
		Location:  project.Location{City: "Cali", Department: "Valle del Cauca"},
		Price:     project.Price{Min: 90000000, Max: 120000000},
		Units:     &project.Units{Total: 40, Available: 20},
		Amenities: []string{"parque"},
	}
}

// scenarioIndex stores A and B with fixed vectors around the query (1, 0).
func scenarioIndex(t *testing.T) *memindex.Index {
	t.Helper()
	idx, err := memindex.New(2)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	put := func(p project.Project, vec []float32) {
		e := domindex.Entry{
			ID:       project.DocumentID("project", p.ID),
			Vector:   vec,
			Document: compose.SearchText(&p, project.Owner{}),
			Metadata: compose.Metadata(&p, project.Owner{}),
		}
		if err := idx.Upsert(ctx, testCollection, e); err != nil {
			t.Fatal(err)
		}
	}
	put(torresDelSol(), []float32{1, 0.3})
	put(conjuntoVerde(), []float32{1, 0.5})
	return idx
}

func scenarioHydrator() *mockHydrator {
	return &mockHydrator{projects: map[int64]project.Project{1: torresDelSol(), 2: conjuntoVerde()}}
}

func newTestService(idx VectorIndex, h Hydrator, opts Options) (*Service, *mockGenerator) {
	gen := &mockGenerator{vec: []float32{1, 0}}
	return New(gen, idx, h, "project", opts, zap.NewNop()), gen
}
