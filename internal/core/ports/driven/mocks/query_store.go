package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// MockQueryStore is an in-memory QueryStore. When a content store is
// attached, Get joins results to surviving content like the SQL version.
type MockQueryStore struct {
	mu       sync.RWMutex
	queries  map[string]*domain.Query
	results  map[string][]*domain.SearchResult
	contents *MockContentStore

	SaveErr error
}

// NewMockQueryStore creates a new MockQueryStore. contents may be nil.
func NewMockQueryStore(contents *MockContentStore) *MockQueryStore {
	return &MockQueryStore{
		queries:  make(map[string]*domain.Query),
		results:  make(map[string][]*domain.SearchResult),
		contents: contents,
	}
}

func (m *MockQueryStore) SaveWithResults(ctx context.Context, query *domain.Query, results []*domain.SearchResult) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	q := *query
	m.queries[query.ID] = &q
	rs := make([]*domain.SearchResult, len(results))
	for i, r := range results {
		cp := *r
		rs[i] = &cp
	}
	m.results[query.ID] = rs
	return nil
}

func (m *MockQueryStore) Get(ctx context.Context, ownerID, queryID string) (*domain.QueryWithResults, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queries[queryID]
	if !ok || q.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}

	out := &domain.QueryWithResults{Query: q, Results: []*domain.HistoryResult{}}
	for _, r := range m.results[queryID] {
		hr := &domain.HistoryResult{SearchResult: r}
		if m.contents != nil {
			if c, err := m.contents.Get(ctx, r.ContentID); err == nil {
				hr.Available = true
				hr.Content = &domain.ContentSummary{
					ID:               c.ID,
					OriginalFilename: c.OriginalFilename,
					Kind:             c.Kind,
					Tag:              c.Tag,
				}
			}
		}
		out.Results = append(out.Results, hr)
	}
	return out, nil
}

func (m *MockQueryStore) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Query, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Query
	for _, q := range m.queries {
		if q.OwnerID == ownerID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, limit, offset), nil
}

func (m *MockQueryStore) Delete(ctx context.Context, ownerID, queryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queries[queryID]
	if !ok || q.OwnerID != ownerID {
		return domain.ErrNotFound
	}
	delete(m.queries, queryID)
	delete(m.results, queryID)
	return nil
}

// Count returns the number of stored queries
func (m *MockQueryStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queries)
}

// ResultCount returns the number of stored result rows for a query
func (m *MockQueryStore) ResultCount(queryID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.results[queryID])
}
