package mocks

import "github.com/custodia-labs/semdex/internal/core/ports/driven"

var (
	_ driven.EmbeddingService = (*MockEmbeddingService)(nil)
	_ driven.BlobStore        = (*MockBlobStore)(nil)
	_ driven.ContentStore     = (*MockContentStore)(nil)
	_ driven.VectorStore      = (*MockVectorStore)(nil)
	_ driven.QueryStore       = (*MockQueryStore)(nil)
	_ driven.TaskQueue        = (*MockTaskQueue)(nil)
	_ driven.DistributedLock  = (*MockDistributedLock)(nil)
	_ driven.SchedulerStore   = (*MockSchedulerStore)(nil)
	_ driven.Thumbnailer      = (*MockThumbnailer)(nil)
)
