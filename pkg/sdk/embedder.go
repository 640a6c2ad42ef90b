package propindex

import "context"

// Embedder converts text to a vector embedding. It is required: the client has
// no built-in provider.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// EmbeddingResult carries the embedding vector and token counts.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// OwnerLookup resolves a project owner by NIT. Optional; without it owner
// fields stay empty in the search text.
type OwnerLookup interface {
	Lookup(ctx context.Context, nit string) (Owner, error)
}

// Owner is a project owner. Return an error wrapping ErrNotFound for an unknown NIT.
type Owner struct {
	NIT   string
	Name  string
	Email string
}
