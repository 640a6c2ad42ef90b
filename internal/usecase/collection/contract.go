package collection

import "context"

// Index is the part of the vector index the collection service needs.
type Index interface {
	GetOrCreateCollection(ctx context.Context, name string) error
	Count(ctx context.Context, collection string) (int, error)
}

// ModelInfo describes the embedding space of the index.
type ModelInfo interface {
	Dimension() int
	Model() string
}
