package chi

import (
	"github.com/kailas-cloud/propindex/internal/domain/metadata"
	domsearch "github.com/kailas-cloud/propindex/internal/domain/search"
	"github.com/kailas-cloud/propindex/internal/usecase/syncer"
)

// Error codes returned in ErrorResponse.Code.
const (
	codeBadRequest         = "bad_request"
	codeUnauthorized       = "unauthorized"
	codeValidationFailed   = "validation_failed"
	codeNotFound           = "not_found"
	codeCollectionNotFound = "collection_not_found"
	codeConflict           = "conflict"
	codeVectorDimMismatch  = "vector_dim_mismatch"
	codeEmbeddingProvider  = "embedding_provider_error"
	codeUpstream           = "upstream_unavailable"
	codeInternal           = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// MessageResponse acknowledges a write.
type MessageResponse struct {
	Message       string `json:"message"`
	ProjectID     int64  `json:"project_id,omitempty"`
	DocumentID    string `json:"document_id,omitempty"`
	OwnerDegraded bool   `json:"owner_degraded,omitempty"`
}

type embeddingRequest struct {
	Text string `json:"text"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
	Dimension int       `json:"dimension"`
	Model     string    `json:"model"`
}

type syncResponse struct {
	Message       string `json:"message"`
	TotalProjects int    `json:"total_projects"`
	IndexedCount  int    `json:"indexed_count"`
	ErrorCount    int    `json:"error_count"`
	OwnerDegraded int    `json:"owner_degraded_count"`
	Partial       bool   `json:"partial"`
}

func syncResponseFrom(s syncer.Summary) syncResponse {
	msg := "Projects sync completed"
	if s.Partial {
		msg = "Projects sync completed partially"
	}
	return syncResponse{
		Message:       msg,
		TotalProjects: s.Total,
		IndexedCount:  s.Indexed,
		ErrorCount:    s.Errors,
		OwnerDegraded: s.OwnerDegraded,
		Partial:       s.Partial,
	}
}

type priceRange struct {
	Min *float64 `json:"min"`
	Max *float64 `json:"max"`
}

type searchFilters struct {
	Location     string      `json:"location"`
	PropertyType string      `json:"property_type"`
	Amenities    []string    `json:"amenities"`
	PriceRange   *priceRange `json:"price_range"`
}

type searchRequest struct {
	Query               string         `json:"query"`
	Collection          string         `json:"collection"`
	MaxResults          int            `json:"max_results"`
	SimilarityThreshold *float64       `json:"similarity_threshold"`
	Filters             *searchFilters `json:"filters"`
}

func (r searchRequest) toQuery() (domsearch.Query, error) {
	var f domsearch.Filters
	if r.Filters != nil {
		f.Location = r.Filters.Location
		f.PropertyType = r.Filters.PropertyType
		f.Amenities = r.Filters.Amenities
		if r.Filters.PriceRange != nil {
			f.Price = domsearch.PriceRange{Min: r.Filters.PriceRange.Min, Max: r.Filters.PriceRange.Max}
		}
	}
	return domsearch.NewQuery(r.Query, r.Collection, r.MaxResults, r.SimilarityThreshold, f) //nolint:wrapcheck // validation error
}

type searchResult struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Metadata   metadata.Metadata `json:"metadata"`
	Document   string            `json:"document"`
	Scores     domsearch.Scores  `json:"scores"`
	FinalScore float64           `json:"final_score"`
}

type searchResponse struct {
	Results      []searchResult `json:"results"`
	TotalResults int            `json:"total_results"`
	Query        string         `json:"query"`
	Collection   string         `json:"collection"`
	Degraded     bool           `json:"degraded"`
}

func searchResponseFrom(resp domsearch.Response) searchResponse {
	results := make([]searchResult, len(resp.Results))
	for i, r := range resp.Results {
		results[i] = searchResult{
			ID:         r.ID,
			Score:      r.Score,
			Metadata:   r.Metadata,
			Document:   r.Document,
			Scores:     r.Scores,
			FinalScore: r.FinalScore,
		}
	}
	return searchResponse{
		Results:      results,
		TotalResults: len(results),
		Query:        resp.Query,
		Collection:   resp.Collection,
		Degraded:     resp.Degraded,
	}
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

type infoResponse struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Commit  string `json:"commit"`
}
