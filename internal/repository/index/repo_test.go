package index

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/kailas-cloud/propindex/internal/db"
	"github.com/kailas-cloud/propindex/internal/domain"
	"github.com/kailas-cloud/propindex/internal/domain/metadata"
	"github.com/kailas-cloud/propindex/internal/domain/search/filter"
)

func TestGetOrCreateCollection_Idempotent(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	var got *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		got = def
		if ms.createCalls > 1 {
			return db.ErrIndexExists
		}
		return nil
	}

	if err := repo.GetOrCreateCollection(ctx, "real_estate_projects"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := repo.GetOrCreateCollection(ctx, "real_estate_projects"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if ms.createCalls != 1 {
		t.Errorf("CreateIndex calls = %d, want 1 (cached)", ms.createCalls)
	}
	if got.Name != "propindex:real_estate_projects:idx" {
		t.Errorf("index name = %q", got.Name)
	}
	if !slices.Equal(got.Prefixes, []string{"propindex:real_estate_projects:"}) {
		t.Errorf("prefixes = %v", got.Prefixes)
	}
}

func TestGetOrCreateCollection_ExistingIndexIsSuccess(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error { return db.ErrIndexExists }

	if err := repo.GetOrCreateCollection(context.Background(), "c"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGetOrCreateCollection_Error(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error {
		return &db.Error{Op: db.OpCreateIndex, Err: errors.New("boom")}
	}

	if err := repo.GetOrCreateCollection(context.Background(), "c"); err == nil {
		t.Fatal("expected error")
	}
	ms.createIndexFn = nil
	if err := repo.GetOrCreateCollection(context.Background(), "c"); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestUpsert_Idempotent(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()
	e := testEntry("project_1", "Bogotá", 200)

	for range 2 {
		if err := repo.Upsert(ctx, "c", e); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}
	if len(ms.hashes) != 1 {
		t.Fatalf("hashes = %d, want 1", len(ms.hashes))
	}
	n, _ := repo.Count(ctx, "c")
	if n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}

func TestUpsert_FullReplaceDropsStaleFields(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	first := testEntry("project_1", "Bogotá", 200)
	first.Metadata.SetString("owner_name", "Constructora A")
	if err := repo.Upsert(ctx, "c", first); err != nil {
		t.Fatal(err)
	}

	second := testEntry("project_1", "Cali", 90)
	second.Document = "nuevo documento"
	if err := repo.Upsert(ctx, "c", second); err != nil {
		t.Fatal(err)
	}

	got, err := repo.Get(ctx, "c", "project_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Document != "nuevo documento" {
		t.Errorf("Document = %q", got.Document)
	}
	if got.Metadata.String("city") != "Cali" || got.Metadata.Number("price_min") != 90 {
		t.Errorf("metadata = %v / %v", got.Metadata.Strings(), got.Metadata.Numerics())
	}
	if _, ok := got.Metadata.Strings()["owner_name"]; ok {
		t.Error("stale owner_name survived the replace")
	}
	if !slices.Equal(got.Vector, second.Vector) {
		t.Errorf("Vector = %v", got.Vector)
	}
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	repo, _ := newTestRepo(t)
	e := testEntry("project_1", "Cali", 1)
	e.Vector = []float32{1}

	err := repo.Upsert(context.Background(), "c", e)
	if !errors.Is(err, domain.ErrVectorDimMismatch) {
		t.Errorf("err = %v, want ErrVectorDimMismatch", err)
	}
}

func TestUpsert_ReservedKey(t *testing.T) {
	repo, _ := newTestRepo(t)
	e := testEntry("project_1", "Cali", 1)
	e.Metadata.SetString("__content", "x")

	if err := repo.Upsert(context.Background(), "c", e); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("err = %v, want ErrValidation", err)
	}
}

func TestDelete_AbsentIsNoop(t *testing.T) {
	repo, _ := newTestRepo(t)
	if err := repo.Delete(context.Background(), "c", "project_404"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDelete_RemovesEntry(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	_ = repo.Upsert(ctx, "c", testEntry("project_1", "Cali", 1))

	if err := repo.Delete(ctx, "c", "project_1"); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.Get(ctx, "c", "project_1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Get after delete = %v, want ErrNotFound", err)
	}
}

func TestCount_UnknownCollection(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexDocCountFn = func(context.Context, string) (int, error) { return 0, db.ErrIndexNotFound }

	if _, err := repo.Count(context.Background(), "nope"); !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("err = %v, want ErrCollectionNotFound", err)
	}
}

func TestQuery_DecodesHits(t *testing.T) {
	repo, ms := newTestRepo(t)
	ctx := context.Background()

	cond, _ := filter.Eq("city", "Cali")
	expr, _ := filter.NewExpression([]filter.Condition{cond}, nil)

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "propindex:c:idx" || q.K != 25 {
			t.Errorf("query = %s k=%d", q.IndexName, q.K)
		}
		if q.Filters.IsEmpty() {
			t.Error("filters not forwarded")
		}
		return &db.SearchResult{Total: 1, Entries: []db.SearchEntry{{
			Key:   "propindex:c:project_2",
			Score: 0.81,
			Fields: map[string]string{
				"__content":  "conjunto verde",
				"__numerics": "price_min,project_id",
				"city":       "Cali",
				"price_min":  "90000000",
				"project_id": "2",
				"amenities":  `["parque"]`,
			},
		}}}, nil
	}

	hits, err := repo.Query(ctx, "c", []float32{1, 0, 0, 0}, 25, expr)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("hits = %d", len(hits))
	}
	h := hits[0]
	if h.ID != "project_2" || h.Score != 0.81 || h.Document != "conjunto verde" {
		t.Errorf("hit = %+v", h)
	}
	if h.Metadata.Number("price_min") != 90000000 || h.Metadata.Number("project_id") != 2 {
		t.Errorf("numerics = %v", h.Metadata.Numerics())
	}
	if h.Metadata.String("amenities") != `["parque"]` {
		t.Errorf("amenities = %q", h.Metadata.String("amenities"))
	}
}

func TestQuery_UnknownCollection(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		return nil, db.ErrIndexNotFound
	}
	_, err := repo.Query(context.Background(), "nope", []float32{1, 0, 0, 0}, 5, filter.Expression{})
	if !errors.Is(err, domain.ErrCollectionNotFound) {
		t.Errorf("err = %v, want ErrCollectionNotFound", err)
	}
}

func TestQuery_StoreFailure(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: errors.New("connection refused")}
	}
	_, err := repo.Query(context.Background(), "c", []float32{1, 0, 0, 0}, 5, filter.Expression{})
	var dbErr *db.Error
	if !errors.As(err, &dbErr) {
		t.Errorf("err = %v, want wrapped db.Error", err)
	}
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	md := metadata.New()
	md.SetString("name", "Torres")
	md.SetNumber("total_units", 120)
	e := testEntry("project_9", "Bogotá", 5)
	e.Metadata = md

	fields, err := encodeEntry(e)
	if err != nil {
		t.Fatal(err)
	}
	got := decodeEntry("project_9", fields, true)
	if got.Metadata.String("name") != "Torres" || got.Metadata.Number("total_units") != 120 {
		t.Errorf("metadata = %v / %v", got.Metadata.Strings(), got.Metadata.Numerics())
	}
	if got.Metadata.Len() != 2 {
		t.Errorf("Len = %d, want 2", got.Metadata.Len())
	}
}

func TestPing(t *testing.T) {
	repo, ms := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ms.pingErr = errors.New("connection refused")
	if err := repo.Ping(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
