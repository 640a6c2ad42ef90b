package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/kailas-cloud/propindex/internal/domain"
)

// wireRecord accepts both the nested and the legacy flat schema.
type wireRecord struct {
	ID          *float64 `json:"id"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`

	ProjectOwnerNIT *string         `json:"project_owner_nit"`
	Location        json.RawMessage `json:"location"`
	PriceInfo       *wirePrice      `json:"price_info"`
	UnitInfo        *wireUnits      `json:"unit_info"`
	Amenities       []string        `json:"amenities"`
	Status          *string         `json:"status"`

	LocationLegacy         *string  `json:"location_legacy"`
	City                   *string  `json:"city"`
	State                  *string  `json:"state"`
	Country                *string  `json:"country"`
	PropertyType           *string  `json:"property_type"`
	TotalUnits             *float64 `json:"total_units"`
	AvailableUnits         *float64 `json:"available_units"`
	PriceRangeMin          *float64 `json:"price_range_min"`
	PriceRangeMax          *float64 `json:"price_range_max"`
	AreaRangeMin           *float64 `json:"area_range_min"`
	AreaRangeMax           *float64 `json:"area_range_max"`
	ConstructionCompanyNIT *string  `json:"construction_company_nit"`
	StateLegacy            *string  `json:"state_legacy"`
}

type wireLocation struct {
	Address    *string `json:"address"`
	City       *string `json:"city"`
	Department *string `json:"department"`
	Country    *string `json:"country"`
}

type wirePrice struct {
	Currency   *string  `json:"currency"`
	MinPrice   *float64 `json:"min_price"`
	MaxPrice   *float64 `json:"max_price"`
	PricePerM2 *float64 `json:"price_per_m2"`
}

type wireUnits struct {
	TotalUnits     *float64                      `json:"total_units"`
	AvailableUnits *float64                      `json:"available_units"`
	UnitTypes      []string                      `json:"unit_types"`
	Areas          map[string]map[string]float64 `json:"areas"`
}

// Decode parses a canonical-store record in either schema into a Project.
// The record must carry a positive id and a non-empty name.
func Decode(data []byte) (Project, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return Project{}, fmt.Errorf("decode project: %w: %w", domain.ErrValidation, err)
	}
	return w.resolve()
}

// DecodeWithID decodes a record and forces its id, as the webhook and PUT paths do.
func DecodeWithID(data []byte, id int64) (Project, error) {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return Project{}, fmt.Errorf("decode project: %w: %w", domain.ErrValidation, err)
	}
	f := float64(id)
	w.ID = &f
	return w.resolve()
}

func (w *wireRecord) resolve() (Project, error) {
	if w.ID == nil || *w.ID <= 0 || *w.ID != math.Trunc(*w.ID) {
		return Project{}, fmt.Errorf("project id must be a positive integer: %w", domain.ErrValidation)
	}
	name := str(w.Name)
	if strings.TrimSpace(name) == "" {
		return Project{}, fmt.Errorf("project %d: name is required: %w", int64(*w.ID), domain.ErrValidation)
	}

	nestedLoc, legacyLoc, err := splitLocation(w.Location)
	if err != nil {
		return Project{}, fmt.Errorf("project %d: %w", int64(*w.ID), err)
	}

	p := Project{
		ID:          int64(*w.ID),
		Name:        name,
		Description: str(w.Description),
		Amenities:   cleanList(w.Amenities),
		Schema:      SchemaLegacy,
	}
	if nestedLoc != nil || w.PriceInfo != nil || w.UnitInfo != nil {
		p.Schema = SchemaNested
	}

	if nestedLoc != nil {
		p.Location = Location{
			Address:    str(nestedLoc.Address),
			City:       str(nestedLoc.City),
			Department: str(nestedLoc.Department),
			Country:    str(nestedLoc.Country),
		}
	} else {
		addr := legacyLoc
		if addr == "" {
			addr = str(w.LocationLegacy)
		}
		p.Location = Location{
			Address:    addr,
			City:       str(w.City),
			Department: str(w.State),
			Country:    str(w.Country),
		}
	}

	if w.PriceInfo != nil {
		p.Price = Price{
			Currency: str(w.PriceInfo.Currency),
			Min:      num(w.PriceInfo.MinPrice),
			Max:      num(w.PriceInfo.MaxPrice),
			PerM2:    num(w.PriceInfo.PricePerM2),
		}
	} else {
		p.Price = Price{Min: num(w.PriceRangeMin), Max: num(w.PriceRangeMax)}
	}

	switch {
	case w.UnitInfo != nil:
		p.Units = w.UnitInfo.resolve()
		p.Area = p.Units.span()
		if len(p.Units.Areas) == 0 {
			p.Area = AreaRange{Min: num(w.AreaRangeMin), Max: num(w.AreaRangeMax)}
		}
	case w.TotalUnits != nil || w.AvailableUnits != nil:
		p.Units = &Units{Total: int(num(w.TotalUnits)), Available: int(num(w.AvailableUnits))}
		p.Area = AreaRange{Min: num(w.AreaRangeMin), Max: num(w.AreaRangeMax)}
	default:
		p.Area = AreaRange{Min: num(w.AreaRangeMin), Max: num(w.AreaRangeMax)}
	}

	p.PropertyType = str(w.PropertyType)
	if p.PropertyType == "" && p.Units != nil && len(p.Units.Types) > 0 {
		p.PropertyType = p.Units.Types[0]
	}

	p.Status = str(w.Status)
	if p.Status == "" {
		p.Status = str(w.StateLegacy)
	}

	p.OwnerNIT = str(w.ProjectOwnerNIT)
	if p.OwnerNIT == "" {
		p.OwnerNIT = str(w.ConstructionCompanyNIT)
	}

	return p, nil
}

func (u *wireUnits) resolve() *Units {
	out := &Units{
		Total:     int(num(u.TotalUnits)),
		Available: int(num(u.AvailableUnits)),
		Types:     cleanList(u.UnitTypes),
	}
	if len(u.Areas) > 0 {
		out.Areas = make(map[string]AreaRange, len(u.Areas))
		for t, a := range u.Areas {
			lo, hasMin := a["min"]
			hi, hasMax := a["max"]
			if !hasMin || !hasMax {
				continue
			}
			out.Areas[t] = AreaRange{Min: lo, Max: hi}
		}
	}
	return out
}

// span is the overall min of mins and max of maxes across unit types.
func (u *Units) span() AreaRange {
	if len(u.Areas) == 0 {
		return AreaRange{}
	}
	out := AreaRange{Min: math.Inf(1), Max: math.Inf(-1)}
	for _, a := range u.Areas {
		out.Min = math.Min(out.Min, a.Min)
		out.Max = math.Max(out.Max, a.Max)
	}
	return out
}

// splitLocation distinguishes the nested location object from the legacy string.
func splitLocation(raw json.RawMessage) (*wireLocation, string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, "", nil
	}
	switch raw[0] {
	case '{':
		var loc wireLocation
		if err := json.Unmarshal(raw, &loc); err != nil {
			return nil, "", fmt.Errorf("location: %w: %w", domain.ErrValidation, err)
		}
		return &loc, "", nil
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, "", fmt.Errorf("location: %w: %w", domain.ErrValidation, err)
		}
		return nil, s, nil
	default:
		return nil, "", fmt.Errorf("location must be an object or a string: %w", domain.ErrValidation)
	}
}

func str(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func num(p *float64) float64 {
	if p == nil || math.IsNaN(*p) || math.IsInf(*p, 0) {
		return 0
	}
	return *p
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
