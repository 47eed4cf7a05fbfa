package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driving"
	"github.com/custodia-labs/semdex/internal/runtime"
)

// Ensure searchService implements SearchService
var _ driving.SearchService = (*searchService)(nil)

// searchService implements the SearchService interface
type searchService struct {
	services *runtime.Services
	policy   *domain.ExtensionPolicy
	defaults domain.SearchOptions
	logger   *slog.Logger
}

// NewSearchService creates a new SearchService. Query files are classified
// with policy; a nil policy falls back to the default allow-list.
func NewSearchService(services *runtime.Services, policy *domain.ExtensionPolicy, logger *slog.Logger) driving.SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	if policy == nil {
		policy, _ = domain.NewExtensionPolicy(nil)
	}
	return &searchService{
		services: services,
		policy:   policy,
		defaults: services.Settings().Search,
		logger:   logger.With("service", "search"),
	}
}

// Search embeds the query text, ranks the owner's ready content against it
// and records the query with its results as one unit.
func (s *searchService) Search(ctx context.Context, ownerID, text string, opts domain.SearchOptions) (*domain.SearchOutcome, error) {
	start := time.Now()

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: query text is required", domain.ErrInvalidInput)
	}

	vector, err := s.embed(ctx, []byte(text), domain.ContentKindText)
	if err != nil {
		return nil, err
	}
	return s.rankAndRecord(ctx, domain.NewQuery(ownerID, text), vector, opts, start)
}

// SearchFiles embeds every query part (the optional text and each file)
// and searches with the mean of the part vectors.
func (s *searchService) SearchFiles(ctx context.Context, ownerID, text string, files []domain.QueryFile, opts domain.SearchOptions) (*domain.SearchOutcome, error) {
	start := time.Now()

	text = strings.TrimSpace(text)
	if text == "" && len(files) == 0 {
		return nil, fmt.Errorf("%w: no valid query parts provided", domain.ErrInvalidInput)
	}
	if len(files) > domain.MaxQueryFiles {
		return nil, fmt.Errorf("%w: at most %d query files", domain.ErrInvalidInput, domain.MaxQueryFiles)
	}

	// Classify everything before calling the embedding service
	kinds := make([]domain.ContentKind, len(files))
	names := make([]string, len(files))
	for i, f := range files {
		kind, err := s.policy.Classify(f.Filename)
		if err != nil {
			return nil, err
		}
		if len(f.Data) == 0 {
			return nil, fmt.Errorf("%w: %s is empty", domain.ErrInvalidInput, f.Filename)
		}
		if limit := s.services.Settings().MaxUploadBytes; limit > 0 && int64(len(f.Data)) > limit {
			return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrTooLarge, f.Filename, limit)
		}
		kinds[i] = kind
		names[i] = domain.SanitizeFilename(f.Filename)
	}

	vectors := make([][]float32, 0, len(files)+1)
	if text != "" {
		v, err := s.embed(ctx, []byte(text), domain.ContentKindText)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	for i, f := range files {
		v, err := s.embed(ctx, f.Data, kinds[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", names[i], err)
		}
		vectors = append(vectors, v)
	}

	vector, err := domain.MeanVector(vectors)
	if err != nil {
		return nil, err
	}
	return s.rankAndRecord(ctx, domain.NewFileQuery(ownerID, text, names), vector, opts, start)
}

// embed returns a vector of the configured size for one query part
func (s *searchService) embed(ctx context.Context, data []byte, kind domain.ContentKind) ([]float32, error) {
	vector, err := s.services.EmbeddingService().Embed(ctx, data, kind)
	if err != nil {
		if errors.Is(err, domain.ErrServiceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingFailed, err)
	}
	if err := domain.ValidateDimensions(vector, s.services.Settings().Dimensions); err != nil {
		return nil, err
	}
	return vector, nil
}

func (s *searchService) rankAndRecord(ctx context.Context, query *domain.Query, vector []float32, opts domain.SearchOptions, start time.Time) (*domain.SearchOutcome, error) {
	opts = opts.Normalize(s.defaults)

	hits, err := s.services.Vectors().Search(ctx, query.OwnerID, vector, opts)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := domain.NewSearchResults(query, hits)
	if err := s.services.Queries().SaveWithResults(ctx, query, results); err != nil {
		return nil, fmt.Errorf("record query: %w", err)
	}

	took := time.Since(start)
	s.logger.Debug("search completed", "query_id", query.ID, "type", query.Type, "results", len(results), "took", took)
	return &domain.SearchOutcome{
		QueryID: query.ID,
		Query:   query,
		Results: results,
		Took:    took,
	}, nil
}
