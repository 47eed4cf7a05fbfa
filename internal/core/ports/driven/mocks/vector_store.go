package mocks

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// MockVectorStore is an in-memory VectorStore using brute-force cosine similarity
type MockVectorStore struct {
	mu         sync.RWMutex
	contents   *MockContentStore
	embeddings map[string]*domain.Embedding
	dimensions int
	upserts    int

	UpsertErr error
	SearchErr error
}

// NewMockVectorStore creates a vector store bound to a content store
func NewMockVectorStore(contents *MockContentStore, dimensions int) *MockVectorStore {
	return &MockVectorStore{
		contents:   contents,
		embeddings: make(map[string]*domain.Embedding),
		dimensions: dimensions,
	}
}

func (m *MockVectorStore) UpsertAndMarkReady(ctx context.Context, embedding *domain.Embedding) error {
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	if err := domain.ValidateDimensions(embedding.Vector, m.dimensions); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.contents.Get(ctx, embedding.ContentID); err != nil {
		return err
	}
	e := *embedding
	m.embeddings[embedding.ContentID] = &e
	m.contents.setStatus(embedding.ContentID, nil, domain.ContentStatusReady, "")
	m.upserts++
	return nil
}

func (m *MockVectorStore) Get(ctx context.Context, contentID string) (*domain.Embedding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.embeddings[contentID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *e
	return &out, nil
}

func (m *MockVectorStore) Delete(ctx context.Context, contentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.embeddings, contentID)
	m.contents.setStatus(contentID, []domain.ContentStatus{domain.ContentStatusReady}, domain.ContentStatusFailed, "embedding removed")
	return nil
}

func (m *MockVectorStore) Search(ctx context.Context, ownerID string, vector []float32, opts domain.SearchOptions) ([]*domain.ScoredContent, error) {
	if m.SearchErr != nil {
		return nil, m.SearchErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var hits []*domain.ScoredContent
	for id, e := range m.embeddings {
		c, err := m.contents.Get(ctx, id)
		if err != nil || c.OwnerID != ownerID || c.Status != domain.ContentStatusReady {
			continue
		}
		score := cosine(vector, e.Vector)
		if opts.MinSimilarity > 0 && score < opts.MinSimilarity {
			continue
		}
		hits = append(hits, &domain.ScoredContent{ContentID: id, Similarity: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity == hits[j].Similarity {
			return hits[i].ContentID < hits[j].ContentID
		}
		return hits[i].Similarity > hits[j].Similarity
	})
	if opts.Limit > 0 && len(hits) > opts.Limit {
		hits = hits[:opts.Limit]
	}
	return hits, nil
}

func (m *MockVectorStore) Dimensions() int {
	return m.dimensions
}

// Count returns the number of stored embeddings
func (m *MockVectorStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.embeddings)
}

// Upserts returns how many successful upserts happened
func (m *MockVectorStore) Upserts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.upserts
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
