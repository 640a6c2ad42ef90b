package domain

import "errors"

var (
	// ErrValidation signals a malformed request, webhook, or record.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound signals a missing resource (e.g. hydration miss).
	ErrNotFound = errors.New("not found")
	// ErrCollectionNotFound signals an unknown vector collection.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrUpstreamUnavailable signals that the canonical store or the vector backend is unreachable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrConflict signals an operation that cannot run concurrently with itself (e.g. resync).
	ErrConflict = errors.New("conflict")
	// ErrVectorDimMismatch signals a vector dimension mismatch.
	ErrVectorDimMismatch = errors.New("vector dimension mismatch")
)
