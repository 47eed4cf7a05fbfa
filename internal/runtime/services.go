package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
)

// Deps are the driven adapters shared by the API and the worker pool
type Deps struct {
	Blobs      driven.BlobStore
	Contents   driven.ContentStore
	Vectors    driven.VectorStore
	Queries    driven.QueryStore
	Queue      driven.TaskQueue
	Embedding  driven.EmbeddingService
	Lock       driven.DistributedLock // Optional
	Thumbnails driven.Thumbnailer     // Optional, no image previews without it
}

// HealthCheck pings one dependency
type HealthCheck func(ctx context.Context) error

// Services is the explicitly constructed service context. It is built once
// in main and handed by reference to every service and worker goroutine.
// Adapters are fixed at construction; only health checks can be added later.
type Services struct {
	config   *domain.RuntimeConfig
	settings domain.PipelineSettings
	deps     Deps

	mu     sync.RWMutex
	checks map[string]HealthCheck
}

// NewServices validates deps against the pipeline settings and builds the context
func NewServices(config *domain.RuntimeConfig, settings domain.PipelineSettings, deps Deps) (*Services, error) {
	if config == nil {
		return nil, errors.New("runtime config is required")
	}
	switch {
	case deps.Blobs == nil:
		return nil, errors.New("blob store is required")
	case deps.Contents == nil:
		return nil, errors.New("content store is required")
	case deps.Vectors == nil:
		return nil, errors.New("vector store is required")
	case deps.Queries == nil:
		return nil, errors.New("query store is required")
	case deps.Queue == nil:
		return nil, errors.New("task queue is required")
	case deps.Embedding == nil:
		return nil, errors.New("embedding service is required")
	}
	if settings.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: dimensions must be positive", domain.ErrInvalidInput)
	}
	if deps.Vectors.Dimensions() != settings.Dimensions {
		return nil, fmt.Errorf("%w: vector store has %d dimensions, pipeline expects %d",
			domain.ErrDimensionMismatch, deps.Vectors.Dimensions(), settings.Dimensions)
	}

	s := &Services{
		config:   config,
		settings: settings,
		deps:     deps,
		checks:   make(map[string]HealthCheck),
	}
	s.checks["storage"] = deps.Blobs.Ping
	s.checks["queue"] = deps.Queue.Ping
	s.checks["embedding"] = deps.Embedding.HealthCheck
	if deps.Lock != nil {
		s.checks["lock"] = deps.Lock.Ping
	}
	return s, nil
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig { return s.config }

// Settings returns the pipeline constants
func (s *Services) Settings() domain.PipelineSettings { return s.settings }

// Blobs returns the storage backend
func (s *Services) Blobs() driven.BlobStore { return s.deps.Blobs }

// Contents returns the content registry store
func (s *Services) Contents() driven.ContentStore { return s.deps.Contents }

// Vectors returns the vector store
func (s *Services) Vectors() driven.VectorStore { return s.deps.Vectors }

// Queries returns the query history store
func (s *Services) Queries() driven.QueryStore { return s.deps.Queries }

// Queue returns the task queue
func (s *Services) Queue() driven.TaskQueue { return s.deps.Queue }

// EmbeddingService returns the embedding client
func (s *Services) EmbeddingService() driven.EmbeddingService { return s.deps.Embedding }

// Lock returns the distributed lock (may be nil)
func (s *Services) Lock() driven.DistributedLock { return s.deps.Lock }

// Thumbnails returns the thumbnail renderer (may be nil)
func (s *Services) Thumbnails() driven.Thumbnailer { return s.deps.Thumbnails }

// AddHealthCheck registers an extra readiness check (e.g. the database)
func (s *Services) AddHealthCheck(name string, check HealthCheck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = check
}

// Health runs every check and returns "ok" or the error text per dependency.
// The second return is false if any check failed.
func (s *Services) Health(ctx context.Context) (map[string]string, bool) {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	checks := make(map[string]HealthCheck, len(s.checks))
	for k, v := range s.checks {
		checks[k] = v
	}
	s.mu.RUnlock()

	sort.Strings(names)
	report := make(map[string]string, len(names))
	healthy := true
	for _, name := range names {
		if err := checks[name](ctx); err != nil {
			report[name] = err.Error()
			healthy = false
			continue
		}
		report[name] = "ok"
	}
	return report, healthy
}

// QueueStats returns the task counts of the queue for the readiness report
func (s *Services) QueueStats(ctx context.Context) (*driven.QueueStats, error) {
	return s.deps.Queue.Stats(ctx)
}

// Close shuts down the embedding client and the queue
func (s *Services) Close() error {
	return errors.Join(s.deps.Embedding.Close(), s.deps.Queue.Close())
}
