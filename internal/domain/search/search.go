// Package search holds the query, filter and ranking types of the project search.
package search

import (
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/propindex/internal/domain"
	"github.com/kailas-cloud/propindex/internal/domain/metadata"
)

// Limits and defaults for a search request.
const (
	DefaultMaxResults = 10
	MaxMaxResults     = 100
	DefaultThreshold  = 0.7
)

// PriceRange bounds price_min; a nil side is unbounded.
type PriceRange struct {
	Min *float64
	Max *float64
}

// Bounds returns the inclusive range with defaults 0 and +Inf.
func (p PriceRange) Bounds() (lo, hi float64) {
	lo, hi = 0, math.Inf(1)
	if p.Min != nil {
		lo = *p.Min
	}
	if p.Max != nil {
		hi = *p.Max
	}
	return lo, hi
}

// IsSet reports whether either side was supplied.
func (p PriceRange) IsSet() bool { return p.Min != nil || p.Max != nil }

// Filters is the structured intent attached to a query. Zero values are neutral.
type Filters struct {
	Location     string
	PropertyType string
	Amenities    []string
	Price        PriceRange
}

// HasLocation reports whether a location filter was supplied.
func (f Filters) HasLocation() bool { return strings.TrimSpace(f.Location) != "" }

// HasAmenities reports whether an amenities filter was supplied.
func (f Filters) HasAmenities() bool { return len(f.Amenities) > 0 }

// Query is a validated search request.
type Query struct {
	Text       string
	Collection string
	MaxResults int
	Threshold  float64
	Filters    Filters
}

// NewQuery validates and normalizes a search request. Zero maxResults and a nil
// threshold take the defaults.
func NewQuery(text, collection string, maxResults int, threshold *float64, f Filters) (Query, error) {
	if collection == "" {
		collection = domain.DefaultCollection
	}
	if maxResults == 0 {
		maxResults = DefaultMaxResults
	}
	if maxResults < 0 || maxResults > MaxMaxResults {
		return Query{}, fmt.Errorf("max_results must be between 1 and %d: %w", MaxMaxResults, domain.ErrValidation)
	}
	t := DefaultThreshold
	if threshold != nil {
		t = *threshold
	}
	if math.IsNaN(t) || t < 0 || t > 1 {
		return Query{}, fmt.Errorf("similarity_threshold must be in [0,1]: %w", domain.ErrValidation)
	}
	lo, hi := f.Price.Bounds()
	if lo > hi {
		return Query{}, fmt.Errorf("price_range min exceeds max: %w", domain.ErrValidation)
	}
	amenities := make([]string, 0, len(f.Amenities))
	for _, a := range f.Amenities {
		if a = strings.TrimSpace(a); a != "" {
			amenities = append(amenities, a)
		}
	}
	f.Amenities = amenities
	f.Location = strings.TrimSpace(f.Location)
	f.PropertyType = strings.TrimSpace(f.PropertyType)

	return Query{
		Text:       strings.TrimSpace(text),
		Collection: collection,
		MaxResults: maxResults,
		Threshold:  t,
		Filters:    f,
	}, nil
}

// Scores are the per-component sub-scores of a ranked result, each in [0,1].
type Scores struct {
	Semantic     float64 `json:"semantic"`
	Location     float64 `json:"location"`
	Price        float64 `json:"price"`
	Amenities    float64 `json:"amenities"`
	Availability float64 `json:"availability"`
}

// Weights of the five components. They sum to 1.
type Weights struct {
	Semantic     float64
	Location     float64
	Price        float64
	Amenities    float64
	Availability float64
}

// DefaultWeights returns the production ranking weights.
func DefaultWeights() Weights {
	return Weights{Semantic: 0.40, Location: 0.25, Price: 0.20, Amenities: 0.10, Availability: 0.05}
}

// Combine returns the weighted sum rounded to three decimals.
func (w Weights) Combine(s Scores) float64 {
	sum := s.Semantic*w.Semantic +
		s.Location*w.Location +
		s.Price*w.Price +
		s.Amenities*w.Amenities +
		s.Availability*w.Availability
	return math.Round(sum*1000) / 1000
}

// RankedResult is a search hit after filtering and scoring.
type RankedResult struct {
	ID         string
	ProjectID  int64
	Score      float64
	Metadata   metadata.Metadata
	Document   string
	Scores     Scores
	FinalScore float64
}

// Response is the outcome of a search. Degraded is set when any result was
// served from index-carried metadata because the canonical store was unavailable.
type Response struct {
	Results    []RankedResult
	Query      string
	Collection string
	Degraded   bool
}
