package driven

import (
	"context"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// VectorStore holds one embedding per content item and answers
// nearest-neighbour queries over them.
type VectorStore interface {
	// UpsertAndMarkReady writes the embedding (replacing any previous vector
	// for the content) and flips the content to ready in one transaction.
	// Returns domain.ErrNotFound if the content no longer exists and
	// domain.ErrDimensionMismatch if the vector has the wrong size.
	UpsertAndMarkReady(ctx context.Context, embedding *domain.Embedding) error

	// Get retrieves the embedding for a content item
	Get(ctx context.Context, contentID string) (*domain.Embedding, error)

	// Delete removes the embedding for a content item (no-op if absent).
	// Ready content is moved to failed in the same transaction so a
	// ready row never exists without its vector.
	Delete(ctx context.Context, contentID string) error

	// Search returns the owner's ready content closest to vector,
	// ordered by similarity descending.
	Search(ctx context.Context, ownerID string, vector []float32, opts domain.SearchOptions) ([]*domain.ScoredContent, error)

	// Dimensions returns the fixed vector size
	Dimensions() int
}
