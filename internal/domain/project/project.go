// Package project holds the canonical in-memory shape of a real-estate project
// listing, resolved from either of the two wire schemas used by the canonical store.
package project

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Schema tags which wire variant a record was decoded from.
type Schema int

const (
	// SchemaNested is the current schema with location/price_info/unit_info objects.
	SchemaNested Schema = iota
	// SchemaLegacy is the flat schema (city, price_range_min, total_units, ...).
	SchemaLegacy
)

func (s Schema) String() string {
	if s == SchemaLegacy {
		return "legacy"
	}
	return "nested"
}

// Location is where the project is built.
type Location struct {
	Address    string
	City       string
	Department string
	Country    string
}

// Price is the advertised price band.
type Price struct {
	Currency string
	Min      float64
	Max      float64
	PerM2    float64
}

// AreaRange is a min/max area in square meters.
type AreaRange struct {
	Min float64
	Max float64
}

// Units describes the unit inventory. A nil *Units on Project means the record
// carried no unit information at all.
type Units struct {
	Total     int
	Available int
	Types     []string
	Areas     map[string]AreaRange
}

// AreaTypes returns the unit types with area data, sorted.
func (u *Units) AreaTypes() []string {
	if u == nil {
		return nil
	}
	types := make([]string, 0, len(u.Areas))
	for t := range u.Areas {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Project is the canonical project shape every component works with.
type Project struct {
	ID           int64
	Name         string
	Description  string
	OwnerNIT     string
	Location     Location
	Price        Price
	Units        *Units
	Area         AreaRange
	Amenities    []string
	Status       string
	PropertyType string
	Schema       Schema
}

// HasAmenity reports whether the project lists the amenity (case-insensitive).
func (p *Project) HasAmenity(name string) bool {
	needle := strings.ToLower(strings.TrimSpace(name))
	for _, a := range p.Amenities {
		if strings.ToLower(strings.TrimSpace(a)) == needle {
			return true
		}
	}
	return false
}

// LocationText is the "{city} {department}" string used for location matching.
func (p *Project) LocationText() string {
	return strings.TrimSpace(p.Location.City + " " + p.Location.Department)
}

// DocumentID derives the stable index ID for a record ("{entity}_{id}").
func DocumentID(entity string, id int64) string {
	return entity + "_" + strconv.FormatInt(id, 10)
}

// ParseDocumentID extracts the record ID from an index ID produced by DocumentID.
func ParseDocumentID(entity, docID string) (int64, error) {
	raw, ok := strings.CutPrefix(docID, entity+"_")
	if !ok {
		return 0, fmt.Errorf("document id %q does not belong to entity %q", docID, entity)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("document id %q: %w", docID, err)
	}
	return id, nil
}

// Owner is the construction company behind a project, as served by the owners service.
type Owner struct {
	NIT   string `json:"nit"`
	Name  string `json:"name"`
	Email string `json:"email"`
}
