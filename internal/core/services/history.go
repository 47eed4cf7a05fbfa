package services

import (
	"context"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driving"
	"github.com/custodia-labs/semdex/internal/runtime"
)

// Ensure historyService implements HistoryService
var _ driving.HistoryService = (*historyService)(nil)

type historyService struct {
	services *runtime.Services
}

// NewHistoryService creates a new HistoryService
func NewHistoryService(services *runtime.Services) driving.HistoryService {
	return &historyService{services: services}
}

func (s *historyService) ListQueries(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Query, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.services.Queries().List(ctx, ownerID, limit, offset)
}

// GetQuery returns the stored ranking. Results whose content has since been
// deleted are kept and reported as unavailable.
func (s *historyService) GetQuery(ctx context.Context, ownerID, queryID string) (*domain.QueryWithResults, error) {
	return s.services.Queries().Get(ctx, ownerID, queryID)
}

func (s *historyService) DeleteQuery(ctx context.Context, ownerID, queryID string) error {
	return s.services.Queries().Delete(ctx, ownerID, queryID)
}
