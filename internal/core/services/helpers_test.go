package services

import (
	"testing"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven/mocks"
	"github.com/custodia-labs/semdex/internal/runtime"
)

const testDims = 8

// testEnv bundles the in-memory adapters behind a runtime.Services
type testEnv struct {
	blobs      *mocks.MockBlobStore
	contents   *mocks.MockContentStore
	vectors    *mocks.MockVectorStore
	queries    *mocks.MockQueryStore
	queue      *mocks.MockTaskQueue
	embedding  *mocks.MockEmbeddingService
	thumbnails *mocks.MockThumbnailer
	services   *runtime.Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	contents := mocks.NewMockContentStore()
	env := &testEnv{
		blobs:      mocks.NewMockBlobStore(),
		contents:   contents,
		vectors:    mocks.NewMockVectorStore(contents, testDims),
		queries:    mocks.NewMockQueryStore(contents),
		queue:      mocks.NewMockTaskQueue(),
		embedding:  mocks.NewMockEmbeddingService(),
		thumbnails: mocks.NewMockThumbnailer(),
	}

	settings := domain.DefaultPipelineSettings()
	settings.Dimensions = testDims
	settings.MaxUploadBytes = 1024

	svcs, err := runtime.NewServices(
		domain.NewRuntimeConfig(domain.StorageBackendLocal, "memory", "memory"),
		settings,
		runtime.Deps{
			Blobs:      env.blobs,
			Contents:   env.contents,
			Vectors:    env.vectors,
			Queries:    env.queries,
			Queue:      env.queue,
			Embedding:  env.embedding,
			Thumbnails: env.thumbnails,
		},
	)
	if err != nil {
		t.Fatalf("failed to build services: %v", err)
	}
	env.services = svcs
	return env
}

func (e *testEnv) contentService(t *testing.T) *contentService {
	t.Helper()
	policy, err := domain.NewExtensionPolicy([]string{"txt", "jpg", "wav"})
	if err != nil {
		t.Fatalf("policy: %v", err)
	}
	return NewContentService(e.services, policy, nil).(*contentService)
}

func (e *testEnv) indexer() *Indexer {
	return NewIndexer(IndexerConfig{Services: e.services})
}
