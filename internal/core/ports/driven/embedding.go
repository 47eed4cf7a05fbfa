package driven

import (
	"context"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// EmbeddingService turns content bytes into a fixed-dimension vector.
// Text queries are embedded through the same call with kind text so
// queries and content share one vector space.
type EmbeddingService interface {
	// Embed generates the embedding for data of the given kind
	Embed(ctx context.Context, data []byte, kind domain.ContentKind) ([]float32, error)

	// Dimensions returns the embedding dimension size
	Dimensions() int

	// Model returns the model name being used
	Model() string

	// HealthCheck verifies the embedding service is available
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the embedding service
	Close() error
}
