package chi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kailas-cloud/propindex/internal/domain"
	"github.com/kailas-cloud/propindex/internal/domain/project"
	domsearch "github.com/kailas-cloud/propindex/internal/domain/search"
	collectionuc "github.com/kailas-cloud/propindex/internal/usecase/collection"
	healthuc "github.com/kailas-cloud/propindex/internal/usecase/health"
	"github.com/kailas-cloud/propindex/internal/usecase/syncer"
)

type mockGenerator struct {
	vec    []float32
	tokens int
	err    error
}

func (m *mockGenerator) Generate(ctx context.Context, text string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	if text == "" {
		return nil, domain.ErrValidation
	}
	domain.UsageFromContext(ctx).AddTokens(m.tokens)
	return m.vec, nil
}

func (m *mockGenerator) Dimension() int { return len(m.vec) }
func (m *mockGenerator) Model() string  { return "test-model" }

type mockCollections struct {
	info collectionuc.Info
	err  error
}

func (m *mockCollections) Get(_ context.Context, name string) (collectionuc.Info, error) {
	if m.err != nil {
		return collectionuc.Info{}, m.err
	}
	info := m.info
	info.Name = name
	return info, nil
}

type mockSyncer struct {
	indexed   []project.Project
	reindexed []project.Project
	deleted   []int64
	events    []syncer.Event
	summary   syncer.Summary
	outcome   syncer.Outcome
	err       error
}

func (m *mockSyncer) Index(_ context.Context, p *project.Project) (syncer.Result, error) {
	if m.err != nil {
		return syncer.Result{}, m.err
	}
	m.indexed = append(m.indexed, *p)
	return syncer.Result{DocumentID: project.DocumentID("project", p.ID)}, nil
}

func (m *mockSyncer) Reindex(_ context.Context, p *project.Project) (syncer.Result, error) {
	if m.err != nil {
		return syncer.Result{}, m.err
	}
	m.reindexed = append(m.reindexed, *p)
	return syncer.Result{DocumentID: project.DocumentID("project", p.ID), OwnerDegraded: true}, nil
}

func (m *mockSyncer) Deindex(_ context.Context, id int64) error {
	if m.err != nil {
		return m.err
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockSyncer) Resync(context.Context) (syncer.Summary, error) {
	return m.summary, m.err
}

func (m *mockSyncer) HandleWebhook(_ context.Context, ev syncer.Event) syncer.Outcome {
	m.events = append(m.events, ev)
	return m.outcome
}

type mockSearcher struct {
	got  domsearch.Query
	resp domsearch.Response
	err  error
}

func (m *mockSearcher) Search(_ context.Context, q domsearch.Query) (domsearch.Response, error) {
	m.got = q
	if m.err != nil {
		return domsearch.Response{}, m.err
	}
	resp := m.resp
	resp.Query = q.Text
	resp.Collection = q.Collection
	return resp, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type fixture struct {
	gen         *mockGenerator
	collections *mockCollections
	sync        *mockSyncer
	search      *mockSearcher
	health      *mockHealth
	router      http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		gen:         &mockGenerator{vec: []float32{0.1, 0.2, 0.3}, tokens: 5},
		collections: &mockCollections{info: collectionuc.Info{Count: 3, Dimension: 3, Model: "test-model"}},
		sync:        &mockSyncer{outcome: syncer.Outcome{Status: syncer.StatusOK}},
		search:      &mockSearcher{},
		health: &mockHealth{report: healthuc.Report{
			Status: healthuc.Healthy,
			Checks: map[string]healthuc.CheckResult{"database": healthuc.CheckOK},
		}},
	}
	srv := NewServer(f.gen, f.collections, f.sync, f.search, f.health, zap.NewNop())
	r := chi.NewRouter()
	srv.Routes(r)
	f.router = r
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decodeJSON[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rr.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
	return v
}
