package driven

import (
	"context"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// QueryStore persists queries and their point-in-time result sets
type QueryStore interface {
	// SaveWithResults writes the query and all of its results in one transaction
	SaveWithResults(ctx context.Context, query *domain.Query, results []*domain.SearchResult) error

	// Get retrieves an owner's query with its results joined to surviving content
	Get(ctx context.Context, ownerID, queryID string) (*domain.QueryWithResults, error)

	// List retrieves an owner's queries, newest first
	List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Query, error)

	// Delete removes a query and cascades to its results
	Delete(ctx context.Context, ownerID, queryID string) error
}
