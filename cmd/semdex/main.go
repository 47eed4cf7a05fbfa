package main

// @title           Semdex API
// @version         1.0
// @description     Multimodal semantic search over uploaded text, image and audio files. Uploads are embedded in the background and ranked against free-text queries by cosine similarity.

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token issued by the identity service. Format: "Bearer {token}"

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/semdex/internal/adapters/driven/ai"
	"github.com/custodia-labs/semdex/internal/adapters/driven/auth"
	"github.com/custodia-labs/semdex/internal/adapters/driven/imaging"
	"github.com/custodia-labs/semdex/internal/adapters/driven/postgres"
	postgresqueue "github.com/custodia-labs/semdex/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/custodia-labs/semdex/internal/adapters/driven/queue/redis"
	redisadapter "github.com/custodia-labs/semdex/internal/adapters/driven/redis"
	"github.com/custodia-labs/semdex/internal/adapters/driven/storage/local"
	"github.com/custodia-labs/semdex/internal/adapters/driven/storage/minio"
	"github.com/custodia-labs/semdex/internal/adapters/driving/http"
	"github.com/custodia-labs/semdex/internal/config"
	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
	"github.com/custodia-labs/semdex/internal/core/services"
	"github.com/custodia-labs/semdex/internal/runtime"
	"github.com/custodia-labs/semdex/internal/worker"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 {
		// A positional argument overrides RUN_MODE
		_ = os.Setenv("RUN_MODE", os.Args[1])
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if cfg.RunMode == config.ModeToken {
		if err := printDevToken(cfg); err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		return
	}

	log.Printf("semdex %s starting in %s mode", version, cfg.RunMode)
	if cfg.UsesDevSecret() {
		log.Println("Warning: JWT_SECRET is the development default, do not use it in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		log.Fatalf("semdex stopped with error: %v", err)
	}
	log.Println("semdex stopped")
}

// run wires every adapter and blocks until ctx is cancelled or a component fails
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// ===== PostgreSQL =====
	log.Println("Connecting to PostgreSQL...")
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime(),
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime(),
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx, cfg.Embedding.Dimensions); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	log.Println("PostgreSQL connected and schema initialized")

	// ===== Redis (optional) =====
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		log.Println("Connecting to Redis...")
		redisClient, err = redisadapter.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	// ===== Task queue and lock (Redis if available, otherwise PostgreSQL) =====
	var (
		taskQueue driven.TaskQueue
		lock      driven.DistributedLock
	)
	if redisClient != nil {
		consumer := fmt.Sprintf("worker-%d", os.Getpid())
		taskQueue, err = redisqueue.NewQueue(ctx, redisClient, consumer)
		if err != nil {
			return fmt.Errorf("create task queue: %w", err)
		}
		lock = redisadapter.NewLock(redisClient)
		log.Println("Using Redis task queue and lock")
	} else {
		taskQueue = postgresqueue.NewQueue(db.DB)
		lock = postgres.NewAdvisoryLock(db)
		log.Println("Using PostgreSQL task queue and advisory lock")
	}

	// ===== Blob storage =====
	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		return err
	}
	log.Printf("Using %s blob storage", blobs.Backend())

	// ===== Embedding service =====
	embedding, err := ai.NewFactory().CreateEmbeddingService(cfg.EmbeddingSettings())
	if err != nil {
		return fmt.Errorf("create embedding service: %w", err)
	}
	if embedding == nil {
		return errors.New("embedding provider is not configured")
	}
	if err := embedding.HealthCheck(ctx); err != nil {
		log.Printf("Warning: embedding health check failed: %v (indexing will retry)", err)
	}

	// ===== Runtime context =====
	runtimeConfig := domain.NewRuntimeConfig(domain.StorageBackend(cfg.Storage.Backend), cfg.QueueBackend(), cfg.QueueBackend()).
		WithEmbedding(domain.AIProvider(cfg.Embedding.Provider), embedding.Model(), cfg.Embedding.Dimensions)

	svcs, err := runtime.NewServices(runtimeConfig, cfg.PipelineSettings(), runtime.Deps{
		Blobs:      blobs,
		Contents:   postgres.NewContentStore(db),
		Vectors:    postgres.NewVectorStore(db, cfg.Embedding.Dimensions),
		Queries:    postgres.NewQueryStore(db),
		Queue:      taskQueue,
		Embedding:  embedding,
		Lock:       lock,
		Thumbnails: imaging.NewThumbnailer(domain.ThumbnailWidth, domain.ThumbnailHeight, domain.ThumbnailQuality),
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}
	defer svcs.Close()
	svcs.AddHealthCheck("database", db.Ping)

	log.Printf("Runtime config: storage=%s, queue=%s, embedding=%s/%s, dimensions=%d",
		runtimeConfig.StorageBackend,
		runtimeConfig.QueueBackend,
		runtimeConfig.EmbeddingProvider,
		runtimeConfig.EmbeddingModel,
		runtimeConfig.Dimensions)

	g, ctx := errgroup.WithContext(ctx)

	switch cfg.RunMode {
	case config.ModeAPI:
		g.Go(func() error { return runAPI(ctx, cfg, svcs, logger) })
	case config.ModeWorker:
		g.Go(func() error { return runWorker(ctx, cfg, svcs, db, logger) })
	case config.ModeAll:
		g.Go(func() error { return runAPI(ctx, cfg, svcs, logger) })
		g.Go(func() error { return runWorker(ctx, cfg, svcs, db, logger) })
	default:
		return fmt.Errorf("unknown mode: %s", cfg.RunMode)
	}

	return g.Wait()
}

func newBlobStore(ctx context.Context, cfg *config.Config) (driven.BlobStore, error) {
	switch domain.StorageBackend(cfg.Storage.Backend) {
	case domain.StorageBackendMinio:
		store, err := minio.NewStore(ctx, minio.Config{
			Endpoint:  cfg.Storage.Minio.Endpoint,
			AccessKey: cfg.Storage.Minio.AccessKey,
			SecretKey: cfg.Storage.Minio.SecretKey,
			Bucket:    cfg.Storage.Minio.Bucket,
			UseSSL:    cfg.Storage.Minio.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("open minio storage: %w", err)
		}
		return store, nil
	default:
		store, err := local.NewStore(cfg.Storage.LocalRoot)
		if err != nil {
			return nil, fmt.Errorf("open local storage: %w", err)
		}
		return store, nil
	}
}

func runAPI(ctx context.Context, cfg *config.Config, svcs *runtime.Services, logger *slog.Logger) error {
	policy, err := domain.NewExtensionPolicy(cfg.Upload.AllowedExtensions)
	if err != nil {
		return err
	}

	server := http.NewServer(http.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		MaxUploadBytes: cfg.Upload.MaxBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Logger:         logger,
	}, http.Services{
		Auth:    services.NewAuthService(auth.NewAdapter(cfg.Auth.JWTSecret)),
		Content: services.NewContentService(svcs, policy, logger),
		Search:  services.NewSearchService(svcs, policy, logger),
		History: services.NewHistoryService(svcs),
		Tasks:   services.NewTaskService(svcs),
		Health:  svcs,
	})

	log.Printf("API server starting on %s", server.Addr())
	return server.Start(ctx)
}

// runWorker starts the worker pool and the maintenance scheduler and blocks
// until ctx is cancelled.
func runWorker(ctx context.Context, cfg *config.Config, svcs *runtime.Services, db *postgres.DB, logger *slog.Logger) error {
	log.Println("Starting worker mode...")

	var scheduler *services.Scheduler
	if cfg.Scheduler.Enabled {
		scheduler = services.NewScheduler(services.SchedulerConfig{
			Store:        postgres.NewSchedulerStore(db),
			TaskQueue:    svcs.Queue(),
			Lock:         svcs.Lock(),
			Logger:       logger,
			LockRequired: cfg.Scheduler.LockRequired,
		})
		if err := scheduler.Seed(ctx, domain.DefaultScheduledTasks()); err != nil {
			return fmt.Errorf("seed schedules: %w", err)
		}
		log.Printf("Scheduler enabled (lock_required=%t)", cfg.Scheduler.LockRequired)
	} else {
		log.Println("Scheduler disabled via SCHEDULER_ENABLED=false")
	}

	w := worker.NewWorker(worker.WorkerConfig{
		TaskQueue:      svcs.Queue(),
		Processor:      services.NewIndexer(services.IndexerConfig{Services: svcs, Logger: logger}),
		Scheduler:      scheduler,
		Logger:         logger,
		Concurrency:    cfg.Worker.Concurrency,
		DequeueTimeout: cfg.Worker.DequeueTimeoutSec,
		TaskTimeout:    cfg.Worker.TaskTimeout,
	})
	svcs.AddHealthCheck("worker", w.HealthCheck)
	w.Start(ctx)
	log.Println("Worker started, handling embed_content, recover_pending and purge_tasks")

	<-ctx.Done()

	log.Println("Stopping worker...")
	w.Stop()
	log.Println("Worker stopped")
	return nil
}

// printDevToken writes a signed token for local testing to stdout
func printDevToken(cfg *config.Config) error {
	token, err := auth.NewAdapter(cfg.Auth.JWTSecret).
		IssueDevToken(cfg.Auth.DevTokenUser, cfg.Auth.DevTokenEmail, cfg.Auth.DevTokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func newLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
