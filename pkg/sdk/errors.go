package propindex

import "github.com/kailas-cloud/propindex/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation             = domain.ErrValidation
	ErrNotFound               = domain.ErrNotFound
	ErrCollectionNotFound     = domain.ErrCollectionNotFound
	ErrUpstreamUnavailable    = domain.ErrUpstreamUnavailable
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrVectorDimMismatch      = domain.ErrVectorDimMismatch
	ErrConflict               = domain.ErrConflict
)
