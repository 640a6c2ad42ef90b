package domain

// KeyPrefix namespaces every key this service writes to the shared Redis instance.
const KeyPrefix = "propindex:"

// DefaultCollection is the vector collection holding real-estate projects.
const DefaultCollection = "real_estate_projects"

// DefaultEntity is the entity name used to derive document IDs ("project_{id}").
const DefaultEntity = "project"

// VectorConfig holds vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model          string
	Dimensions     int
	DistanceMetric string
	Algorithm      string
}

// DefaultVectorConfig returns the defaults for all-MiniLM-L6-v2 served behind an
// OpenAI-compatible endpoint.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "sentence-transformers/all-MiniLM-L6-v2",
		Dimensions:     384,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
	}
}
