package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/custodia-labs/semdex/internal/core/ports/driven"
	"github.com/custodia-labs/semdex/internal/core/ports/driving"
)

// shutdownTimeout bounds how long in-flight requests may run after Start's
// context is cancelled
const shutdownTimeout = 30 * time.Second

// HealthReporter runs the readiness checks. *runtime.Services implements it.
type HealthReporter interface {
	Health(ctx context.Context) (map[string]string, bool)
	QueueStats(ctx context.Context) (*driven.QueueStats, error)
}

// Services are the driving ports the HTTP layer calls into
type Services struct {
	Auth    driving.AuthService
	Content driving.ContentService
	Search  driving.SearchService
	History driving.HistoryService
	Tasks   driving.TaskService
	Health  HealthReporter // Optional, /ready reports ok without it
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	handler    http.Handler
	version    string
	logger     *slog.Logger

	maxUploadBytes int64

	authService    driving.AuthService
	contentService driving.ContentService
	searchService  driving.SearchService
	historyService driving.HistoryService
	taskService    driving.TaskService
	health         HealthReporter
}

// Config holds server configuration
type Config struct {
	Host           string
	Port           int
	Version        string
	MaxUploadBytes int64    // Upper bound for a multipart upload body
	AllowedOrigins []string // CORS origins, "*" allows any
	Logger         *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           8080,
		Version:        "dev",
		MaxUploadBytes: 16 << 20,
		AllowedOrigins: []string{"*"},
	}
}

// NewServer creates a new HTTP server
func NewServer(cfg Config, svcs Services) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = DefaultConfig().MaxUploadBytes
	}

	s := &Server{
		router:         http.NewServeMux(),
		version:        cfg.Version,
		logger:         logger,
		maxUploadBytes: maxUpload,
		authService:    svcs.Auth,
		contentService: svcs.Content,
		searchService:  svcs.Search,
		historyService: svcs.History,
		taskService:    svcs.Tasks,
		health:         svcs.Health,
	}

	s.setupRoutes()

	s.handler = NewRecoveryMiddleware(logger).Handler(
		NewLoggingMiddleware(logger).Handler(
			NewCORSMiddleware(cfg.AllowedOrigins).Handler(s.router)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authService)
	protected := func(h http.HandlerFunc) http.Handler {
		return authMiddleware.Authenticate(h)
	}

	// Health endpoints (no auth)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)
	s.router.HandleFunc("GET /api/v1/extensions", s.handleListExtensions)

	// Content endpoints
	s.router.Handle("POST /api/v1/contents", protected(s.handleUpload))
	s.router.Handle("GET /api/v1/contents", protected(s.handleListContents))
	s.router.Handle("GET /api/v1/contents/{id}", protected(s.handleGetContent))
	s.router.Handle("PATCH /api/v1/contents/{id}", protected(s.handleUpdateTag))
	s.router.Handle("DELETE /api/v1/contents/{id}", protected(s.handleDeleteContent))
	s.router.Handle("GET /api/v1/contents/{id}/download", protected(s.handleDownload))
	s.router.Handle("GET /api/v1/contents/{id}/thumbnail", protected(s.handleThumbnail))
	s.router.Handle("POST /api/v1/contents/{id}/reindex", protected(s.handleReindex))

	// Search and history
	s.router.Handle("POST /api/v1/search", protected(s.handleSearch))
	s.router.Handle("GET /api/v1/queries", protected(s.handleListQueries))
	s.router.Handle("GET /api/v1/queries/{id}", protected(s.handleGetQuery))
	s.router.Handle("DELETE /api/v1/queries/{id}", protected(s.handleDeleteQuery))

	// Background tasks
	s.router.Handle("GET /api/v1/tasks", protected(s.handleListTasks))
	s.router.Handle("GET /api/v1/tasks/{id}", protected(s.handleGetTask))
	s.router.Handle("POST /api/v1/tasks/{id}/cancel", protected(s.handleCancelTask))
}

// Handler returns the router wrapped in the middleware chain
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until ctx is cancelled, then shuts down gracefully.
// It returns nil after a clean shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpServer.Addr, "version", s.version)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
