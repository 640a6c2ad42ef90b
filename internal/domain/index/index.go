// Package index defines the entries stored in and returned by the vector index.
package index

import (
	"fmt"

	"github.com/kailas-cloud/propindex/internal/domain"
	"github.com/kailas-cloud/propindex/internal/domain/metadata"
)

// Entry is one indexed record: exactly one per ID per collection.
type Entry struct {
	ID       string
	Vector   []float32
	Document string
	Metadata metadata.Metadata
}

// Validate checks the entry against the collection dimension.
func (e Entry) Validate(dim int) error {
	if e.ID == "" {
		return fmt.Errorf("entry id is required: %w", domain.ErrValidation)
	}
	if len(e.Vector) != dim {
		return fmt.Errorf("entry %s: got %d, want %d: %w", e.ID, len(e.Vector), dim, domain.ErrVectorDimMismatch)
	}
	return nil
}

// Hit is a single nearest-neighbor match. Score is cosine similarity in [0,1].
type Hit struct {
	ID       string
	Score    float64
	Document string
	Metadata metadata.Metadata
}

// Layout lists the metadata keys the index can filter on.
type Layout struct {
	Tags     []string
	Numerics []string
}

// ProjectLayout is the filterable schema for project entries.
func ProjectLayout() Layout {
	return Layout{
		Tags: []string{
			"city", "department", "state", "property_type", "construction_company_nit",
		},
		Numerics: []string{
			"project_id", "price_min", "price_max", "area_min", "area_max",
			"total_units", "available_units",
		},
	}
}
