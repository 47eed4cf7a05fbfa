package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// MockBlobStore is an in-memory BlobStore
type MockBlobStore struct {
	mu      sync.RWMutex
	objects map[string][]byte

	// Injected failures (optional)
	PutErr    error
	GetErr    error
	DeleteErr error
}

// NewMockBlobStore creates a new MockBlobStore
func NewMockBlobStore() *MockBlobStore {
	return &MockBlobStore{objects: make(map[string][]byte)}
}

func (m *MockBlobStore) Put(ctx context.Context, path string, data []byte) error {
	if m.PutErr != nil {
		return m.PutErr
	}
	key, err := domain.NormalizeLogicalPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *MockBlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	key, err := domain.NormalizeLogicalPath(path)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("blob %s: %w", key, domain.ErrNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (m *MockBlobStore) Delete(ctx context.Context, path string) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	key, err := domain.NormalizeLogicalPath(path)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[key]; !ok {
		return fmt.Errorf("blob %s: %w", key, domain.ErrNotFound)
	}
	delete(m.objects, key)
	return nil
}

func (m *MockBlobStore) Exists(ctx context.Context, path string) (bool, error) {
	key, err := domain.NormalizeLogicalPath(path)
	if err != nil {
		return false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.objects[key]
	return ok, nil
}

func (m *MockBlobStore) Backend() string {
	return "mock"
}

func (m *MockBlobStore) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored objects
func (m *MockBlobStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}
