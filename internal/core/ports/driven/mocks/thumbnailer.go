package mocks

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// MockThumbnailer prefixes the input with "thumb:". Inputs starting with
// "broken" are treated as undecodable.
type MockThumbnailer struct {
	mu    sync.Mutex
	calls int
}

// NewMockThumbnailer creates a new MockThumbnailer
func NewMockThumbnailer() *MockThumbnailer {
	return &MockThumbnailer{}
}

func (m *MockThumbnailer) Thumbnail(data []byte) ([]byte, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if bytes.HasPrefix(data, []byte("broken")) {
		return nil, fmt.Errorf("%w: not an image", domain.ErrNotSupported)
	}
	return append([]byte("thumb:"), data...), nil
}

// Calls returns how many thumbnails were rendered
func (m *MockThumbnailer) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
