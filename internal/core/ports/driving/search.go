package driving

import (
	"context"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// SearchService embeds a query and ranks the owner's content against it
type SearchService interface {
	// Search runs and records a query. Empty text is rejected with domain.ErrInvalidInput.
	Search(ctx context.Context, ownerID, text string, opts domain.SearchOptions) (*domain.SearchOutcome, error)

	// SearchFiles runs and records a query built from files and optional text.
	// The part embeddings are averaged. Files with an extension outside the
	// upload allow-list are rejected with domain.ErrUnsupportedExtension.
	SearchFiles(ctx context.Context, ownerID, text string, files []domain.QueryFile, opts domain.SearchOptions) (*domain.SearchOutcome, error)
}

// HistoryService gives read and delete access to past queries
type HistoryService interface {
	ListQueries(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Query, error)
	GetQuery(ctx context.Context, ownerID, queryID string) (*domain.QueryWithResults, error)
	DeleteQuery(ctx context.Context, ownerID, queryID string) error
}
