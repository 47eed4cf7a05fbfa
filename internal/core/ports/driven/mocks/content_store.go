package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// MockContentStore is an in-memory ContentStore. MockVectorStore flips
// content to ready through setStatus.
type MockContentStore struct {
	mu       sync.RWMutex
	contents map[string]*domain.Content

	SaveErr error
}

// NewMockContentStore creates a new MockContentStore
func NewMockContentStore() *MockContentStore {
	return &MockContentStore{contents: make(map[string]*domain.Content)}
}

func (m *MockContentStore) Save(ctx context.Context, content *domain.Content) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *content
	m.contents[content.ID] = &c
	return nil
}

func (m *MockContentStore) Get(ctx context.Context, id string) (*domain.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *c
	return &out, nil
}

func (m *MockContentStore) GetForOwner(ctx context.Context, ownerID, id string) (*domain.Content, error) {
	c, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (m *MockContentStore) List(ctx context.Context, ownerID string, filter domain.ContentFilter) ([]*domain.Content, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*domain.Content
	for _, c := range m.contents {
		if c.OwnerID != ownerID {
			continue
		}
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		if filter.Tag != nil && c.Tag != *filter.Tag {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return paginate(out, filter.Limit, filter.Offset), nil
}

func (m *MockContentStore) UpdateTag(ctx context.Context, ownerID, id string, tag bool) (*domain.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contents[id]
	if !ok || c.OwnerID != ownerID {
		return nil, domain.ErrNotFound
	}
	c.Tag = tag
	c.UpdatedAt = time.Now()
	out := *c
	return &out, nil
}

func (m *MockContentStore) MarkFailed(ctx context.Context, id string, reason string) error {
	return m.transition(id, domain.ContentStatusPending, domain.ContentStatusFailed, reason)
}

func (m *MockContentStore) MarkPending(ctx context.Context, id string) error {
	return m.transition(id, domain.ContentStatusFailed, domain.ContentStatusPending, "")
}

func (m *MockContentStore) transition(id string, from, to domain.ContentStatus, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contents[id]
	if !ok {
		return domain.ErrNotFound
	}
	if c.Status != from {
		return nil
	}
	c.Status = to
	c.Error = reason
	c.UpdatedAt = time.Now()
	return nil
}

func (m *MockContentStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contents[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.contents, id)
	return nil
}

func (m *MockContentStore) ClaimStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var stale []*domain.Content
	for _, c := range m.contents {
		if c.Status == domain.ContentStatusPending && c.UpdatedAt.Before(before) {
			stale = append(stale, c)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].UpdatedAt.Before(stale[j].UpdatedAt) })
	stale = paginate(stale, limit, 0)

	now := time.Now()
	out := make([]*domain.Content, 0, len(stale))
	for _, c := range stale {
		c.UpdatedAt = now
		cp := *c
		out = append(out, &cp)
	}
	return out, nil
}

// SetUpdatedAt backdates a record (for sweep tests)
func (m *MockContentStore) SetUpdatedAt(id string, t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.contents[id]; ok {
		c.UpdatedAt = t
	}
}

// Count returns the number of stored content records
func (m *MockContentStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.contents)
}

// setStatus is used by MockVectorStore for the ready flip and demotion
func (m *MockContentStore) setStatus(id string, from []domain.ContentStatus, to domain.ContentStatus, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contents[id]
	if !ok {
		return
	}
	if len(from) > 0 {
		match := false
		for _, f := range from {
			if c.Status == f {
				match = true
			}
		}
		if !match {
			return
		}
	}
	c.Status = to
	c.Error = reason
	c.UpdatedAt = time.Now()
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
