package search

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/propindex/internal/domain/index"
	"github.com/kailas-cloud/propindex/internal/domain/metadata"
	"github.com/kailas-cloud/propindex/internal/domain/project"
)

// Facts are the candidate attributes the business rules look at.
type Facts struct {
	Location       string
	PriceMin       float64
	Amenities      []string
	TotalUnits     int
	AvailableUnits int
}

// FactsFromProject extracts facts from a hydrated project.
func FactsFromProject(p *project.Project) Facts {
	f := Facts{
		Location:  p.LocationText(),
		PriceMin:  p.Price.Min,
		Amenities: p.Amenities,
	}
	if p.Units != nil {
		f.TotalUnits = p.Units.Total
		f.AvailableUnits = p.Units.Available
	}
	return f
}

// FactsFromMetadata extracts facts from index-carried metadata. Unreadable
// amenities are reported in the error; the returned facts are still usable and
// carry no amenities.
func FactsFromMetadata(m metadata.Metadata) (Facts, error) {
	f := Facts{
		Location:       strings.TrimSpace(m.String("city") + " " + m.String("department")),
		PriceMin:       m.Number("price_min"),
		TotalUnits:     int(m.Number("total_units")),
		AvailableUnits: int(m.Number("available_units")),
	}
	raw := m.String("amenities")
	if raw == "" {
		return f, nil
	}
	if err := json.Unmarshal([]byte(raw), &f.Amenities); err != nil {
		f.Amenities = nil
		return f, fmt.Errorf("decode amenities metadata: %w", err)
	}
	return f, nil
}

// Candidate is a post-threshold hit with the facts used to rank it.
type Candidate struct {
	Hit       index.Hit
	ProjectID int64
	Facts     Facts
}

// Ranker applies hard filters and weighted business scores.
type Ranker struct {
	weights Weights
}

// NewRanker creates a ranker with the given weights.
func NewRanker(w Weights) *Ranker {
	return &Ranker{weights: w}
}

// Rank filters, scores, sorts and truncates candidates. Candidates must
// already satisfy the similarity threshold t. Output is deterministic for
// a given input set: ties on final score break by project id ascending.
func (r *Ranker) Rank(cands []Candidate, f Filters, t float64, limit int) []RankedResult {
	out := make([]RankedResult, 0, len(cands))
	for i := range cands {
		c := &cands[i]
		if !Passes(c.Facts, f) {
			continue
		}
		s := Scores{
			Semantic:     SemanticScore(c.Hit.Score, t),
			Location:     LocationScore(c.Facts, f),
			Price:        PriceScore(c.Facts, f),
			Amenities:    AmenitiesScore(c.Facts, f),
			Availability: AvailabilityScore(c.Facts),
		}
		out = append(out, RankedResult{
			ID:         c.Hit.ID,
			ProjectID:  c.ProjectID,
			Score:      c.Hit.Score,
			Metadata:   c.Hit.Metadata,
			Document:   c.Hit.Document,
			Scores:     s,
			FinalScore: r.weights.Combine(s),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FinalScore != out[j].FinalScore {
			return out[i].FinalScore > out[j].FinalScore
		}
		if out[i].ProjectID != out[j].ProjectID {
			return out[i].ProjectID < out[j].ProjectID
		}
		return out[i].ID < out[j].ID
	})

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Passes applies the hard filters: price containment on price_min, all
// required amenities, and location substring. Unsupplied filters are neutral.
func Passes(c Facts, f Filters) bool {
	if f.Price.IsSet() {
		lo, hi := f.Price.Bounds()
		if c.PriceMin < lo || c.PriceMin > hi {
			return false
		}
	}
	for _, a := range f.Amenities {
		if !hasAmenity(c.Amenities, a) {
			return false
		}
	}
	if f.HasLocation() && !strings.Contains(strings.ToLower(c.Location), strings.ToLower(f.Location)) {
		return false
	}
	return true
}

// SemanticScore maps a post-threshold similarity s in [t,1] onto [0,1].
func SemanticScore(s, t float64) float64 {
	if t >= 1 {
		return 1
	}
	v := (s - t) / (1 - t)
	return clamp01(v)
}

// LocationScore is 1 for a substring match, 0.7 for a shared token, 0.3
// otherwise, and 0.5 without a location filter.
func LocationScore(c Facts, f Filters) float64 {
	if !f.HasLocation() {
		return 0.5
	}
	loc := strings.ToLower(c.Location)
	want := strings.ToLower(f.Location)
	if strings.Contains(loc, want) {
		return 1.0
	}
	for _, tok := range strings.Fields(want) {
		if strings.Contains(loc, tok) {
			return 0.7
		}
	}
	return 0.3
}

// PriceScore is 1 inside the range, 0.3 below it, 0.1 above it, and 0.5
// without a price filter.
func PriceScore(c Facts, f Filters) float64 {
	if !f.Price.IsSet() {
		return 0.5
	}
	lo, hi := f.Price.Bounds()
	switch {
	case c.PriceMin < lo:
		return 0.3
	case c.PriceMin > hi:
		return 0.1
	default:
		return 1.0
	}
}

// AmenitiesScore is the fraction of required amenities present, 0.5 without
// an amenities filter.
func AmenitiesScore(c Facts, f Filters) float64 {
	if !f.HasAmenities() {
		return 0.5
	}
	n := 0
	for _, a := range f.Amenities {
		if hasAmenity(c.Amenities, a) {
			n++
		}
	}
	return clamp01(float64(n) / float64(len(f.Amenities)))
}

// AvailabilityScore is available/total clipped to [0,1], 0.5 without units.
func AvailabilityScore(c Facts) float64 {
	if c.TotalUnits <= 0 {
		return 0.5
	}
	return clamp01(float64(c.AvailableUnits) / float64(c.TotalUnits))
}

func hasAmenity(have []string, want string) bool {
	want = strings.ToLower(strings.TrimSpace(want))
	for _, h := range have {
		if strings.ToLower(strings.TrimSpace(h)) == want {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
