package domain

// RuntimeConfig describes which backends were selected at startup.
// Set once in main and read-only afterwards.
type RuntimeConfig struct {
	StorageBackend    StorageBackend `json:"storage_backend"`
	QueueBackend      string         `json:"queue_backend"` // "redis" or "postgres"
	LockBackend       string         `json:"lock_backend"`  // "redis" or "postgres"
	EmbeddingProvider AIProvider     `json:"embedding_provider"`
	EmbeddingModel    string         `json:"embedding_model"`
	Dimensions        int            `json:"dimensions"`
}

// NewRuntimeConfig creates a RuntimeConfig with the given backends
func NewRuntimeConfig(storage StorageBackend, queue, lock string) *RuntimeConfig {
	return &RuntimeConfig{
		StorageBackend: storage,
		QueueBackend:   queue,
		LockBackend:    lock,
	}
}

// WithEmbedding records the embedding model in use
func (c *RuntimeConfig) WithEmbedding(provider AIProvider, model string, dimensions int) *RuntimeConfig {
	c.EmbeddingProvider = provider
	c.EmbeddingModel = model
	c.Dimensions = dimensions
	return c
}
