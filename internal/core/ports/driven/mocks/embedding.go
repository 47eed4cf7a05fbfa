package mocks

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// ErrMockEmbedding is returned when a failure has been injected
var ErrMockEmbedding = errors.New("mock embedding failure")

// MockEmbeddingService is a mock implementation of EmbeddingService for testing.
// Vectors are derived deterministically from the input bytes unless an
// explicit vector was registered with SetVector.
type MockEmbeddingService struct {
	mu          sync.Mutex
	dimensions  int
	model       string
	failures    int
	failAlways  bool
	vectors     map[string][]float32
	calls       int
	unsupported map[domain.ContentKind]bool
}

// NewMockEmbeddingService creates a new MockEmbeddingService
func NewMockEmbeddingService() *MockEmbeddingService {
	return &MockEmbeddingService{
		dimensions:  8,
		model:       "mock-embedding-model",
		vectors:     make(map[string][]float32),
		unsupported: make(map[domain.ContentKind]bool),
	}
}

func (m *MockEmbeddingService) Embed(ctx context.Context, data []byte, kind domain.ContentKind) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++

	if m.unsupported[kind] {
		return nil, fmt.Errorf("%w: %s input", domain.ErrNotSupported, kind)
	}
	if m.failAlways {
		return nil, ErrMockEmbedding
	}
	if m.failures > 0 {
		m.failures--
		return nil, ErrMockEmbedding
	}

	if v, ok := m.vectors[string(data)]; ok {
		out := make([]float32, len(v))
		copy(out, v)
		return out, nil
	}
	return m.generateEmbedding(data), nil
}

func (m *MockEmbeddingService) Dimensions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dimensions
}

func (m *MockEmbeddingService) Model() string {
	return m.model
}

func (m *MockEmbeddingService) HealthCheck(ctx context.Context) error {
	return nil
}

func (m *MockEmbeddingService) Close() error {
	return nil
}

// generateEmbedding generates a deterministic embedding based on a hash of data
func (m *MockEmbeddingService) generateEmbedding(data []byte) []float32 {
	h := fnv.New32a()
	_, _ = h.Write(data)
	seed := h.Sum32()

	embedding := make([]float32, m.dimensions)
	for i := range embedding {
		seed = seed*1103515245 + 12345
		embedding[i] = float32(seed%1000) / 1000.0
	}
	return embedding
}

// Helper methods for testing

// SetFailNext makes the next n calls fail
func (m *MockEmbeddingService) SetFailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = n
}

// SetFailAlways makes every call fail until reset
func (m *MockEmbeddingService) SetFailAlways(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAlways = fail
}

// SetDimensions changes the size of generated vectors
func (m *MockEmbeddingService) SetDimensions(dim int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dimensions = dim
}

// SetVector pins the vector returned for the given input
func (m *MockEmbeddingService) SetVector(data string, vector []float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[data] = vector
}

// Calls returns how many times Embed was invoked
func (m *MockEmbeddingService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// SetUnsupported makes Embed reject the given content kind
func (m *MockEmbeddingService) SetUnsupported(kind domain.ContentKind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsupported[kind] = true
}
