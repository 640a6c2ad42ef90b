// Package collection reports on vector collections.
package collection

import (
	"context"
	"fmt"

	domcol "github.com/kailas-cloud/propindex/internal/domain/collection"
)

// Info describes one collection.
type Info struct {
	Name      string `json:"name"`
	Count     int    `json:"count"`
	Dimension int    `json:"dimension"`
	Model     string `json:"model"`
}

// Service handles collection lookups.
type Service struct {
	index Index
	model ModelInfo
}

// New creates a collection service.
func New(index Index, model ModelInfo) *Service {
	return &Service{index: index, model: model}
}

// Ensure creates the collection if it does not exist. Called at startup for the
// default collection so reads never hit a missing index.
func (s *Service) Ensure(ctx context.Context, name string) error {
	if err := domcol.ValidateName(name); err != nil {
		return err
	}
	if err := s.index.GetOrCreateCollection(ctx, name); err != nil {
		return fmt.Errorf("ensure collection %s: %w", name, err)
	}
	return nil
}

// Get returns the collection size and embedding space. Unknown collections are
// domain.ErrCollectionNotFound.
func (s *Service) Get(ctx context.Context, name string) (Info, error) {
	if err := domcol.ValidateName(name); err != nil {
		return Info{}, err
	}
	n, err := s.index.Count(ctx, name)
	if err != nil {
		return Info{}, fmt.Errorf("get collection: %w", err)
	}
	return Info{
		Name:      name,
		Count:     n,
		Dimension: s.model.Dimension(),
		Model:     s.model.Model(),
	}, nil
}
