package propindex

import (
	domsearch "github.com/kailas-cloud/propindex/internal/domain/search"
	"github.com/kailas-cloud/propindex/internal/usecase/syncer"
)

// Query is a search request. Zero values take the service defaults: ten
// results, a 0.7 similarity threshold, no filters.
type Query struct {
	Text                string
	MaxResults          int
	SimilarityThreshold *float64
	Location            string
	PropertyType        string
	Amenities           []string
	PriceMin            *float64
	PriceMax            *float64
}

// Scores are the per-component sub-scores of a result, each in [0,1].
type Scores struct {
	Semantic     float64
	Location     float64
	Price        float64
	Amenities    float64
	Availability float64
}

// Result is one ranked project.
type Result struct {
	ID         string
	ProjectID  int64
	Similarity float64
	FinalScore float64
	Scores     Scores
	Document   string
	Strings    map[string]string
	Numbers    map[string]float64
}

// Response is the outcome of a search. Degraded is set when candidates were
// ranked on index metadata because the canonical store could not be reached;
// without WithCanonicalStore it is never set.
type Response struct {
	Results  []Result
	Degraded bool
}

// IndexResult describes one indexed project.
type IndexResult struct {
	DocumentID    string
	OwnerDegraded bool
}

// ResyncSummary aggregates a full resync.
type ResyncSummary struct {
	Total         int
	Indexed       int
	Errors        int
	OwnerDegraded int
	Partial       bool
}

func (q Query) toDomain(collection string) (domsearch.Query, error) {
	f := domsearch.Filters{
		Location:     q.Location,
		PropertyType: q.PropertyType,
		Amenities:    q.Amenities,
		Price:        domsearch.PriceRange{Min: q.PriceMin, Max: q.PriceMax},
	}
	return domsearch.NewQuery(q.Text, collection, q.MaxResults, q.SimilarityThreshold, f) //nolint:wrapcheck // validation error
}

func responseFromDomain(resp domsearch.Response) Response {
	out := Response{Results: make([]Result, len(resp.Results)), Degraded: resp.Degraded}
	for i, r := range resp.Results {
		strs := make(map[string]string, len(r.Metadata.Strings()))
		for k, v := range r.Metadata.Strings() {
			strs[k] = v
		}
		nums := make(map[string]float64, len(r.Metadata.Numerics()))
		for k, v := range r.Metadata.Numerics() {
			nums[k] = v
		}
		out.Results[i] = Result{
			ID:         r.ID,
			ProjectID:  r.ProjectID,
			Similarity: r.Score,
			FinalScore: r.FinalScore,
			Scores:     Scores(r.Scores),
			Document:   r.Document,
			Strings:    strs,
			Numbers:    nums,
		}
	}
	return out
}

func summaryFromDomain(s syncer.Summary) ResyncSummary {
	return ResyncSummary{
		Total:         s.Total,
		Indexed:       s.Indexed,
		Errors:        s.Errors,
		OwnerDegraded: s.OwnerDegraded,
		Partial:       s.Partial,
	}
}
