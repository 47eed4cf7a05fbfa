package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driving"
	"github.com/custodia-labs/semdex/internal/runtime"
)

// Ensure contentService implements ContentService
var _ driving.ContentService = (*contentService)(nil)

// Content listing limits
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// contentService implements the ContentService interface
type contentService struct {
	services *runtime.Services
	policy   *domain.ExtensionPolicy
	logger   *slog.Logger
}

// NewContentService creates a new ContentService
func NewContentService(services *runtime.Services, policy *domain.ExtensionPolicy, logger *slog.Logger) driving.ContentService {
	if logger == nil {
		logger = slog.Default()
	}
	return &contentService{
		services: services,
		policy:   policy,
		logger:   logger.With("service", "content"),
	}
}

// Upload stores the bytes, registers a pending record and enqueues the
// embedding task. A failed enqueue is not an upload failure: the content
// stays pending and the recovery sweep re-enqueues it.
func (s *contentService) Upload(ctx context.Context, ownerID, filename string, data []byte) (*driving.UploadResult, error) {
	if ownerID == "" {
		return nil, domain.ErrUnauthorized
	}
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}
	settings := s.services.Settings()
	if settings.MaxUploadBytes > 0 && int64(len(data)) > settings.MaxUploadBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrTooLarge, len(data), settings.MaxUploadBytes)
	}

	kind, err := s.policy.Classify(filename)
	if err != nil {
		return nil, err
	}

	content := domain.NewContent(ownerID, filename, kind, int64(len(data)))
	blobs := s.services.Blobs()
	if err := blobs.Put(ctx, content.LogicalPath, data); err != nil {
		return nil, fmt.Errorf("store content: %w", err)
	}

	if err := s.services.Contents().Save(ctx, content); err != nil {
		if delErr := blobs.Delete(ctx, content.LogicalPath); delErr != nil && !errors.Is(delErr, domain.ErrNotFound) {
			s.logger.Warn("failed to remove orphaned blob",
				"path", content.LogicalPath, "error", delErr)
		}
		return nil, fmt.Errorf("save content: %w", err)
	}

	task := domain.NewEmbedContentTask(ownerID, content.ID).WithMaxAttempts(settings.MaxAttempts)
	if err := s.services.Queue().Enqueue(ctx, task); err != nil {
		s.logger.Warn("failed to enqueue embedding task, leaving content for recovery",
			"content_id", content.ID, "error", err)
		return &driving.UploadResult{Content: content}, nil
	}

	s.logger.Info("content uploaded",
		"content_id", content.ID, "owner_id", ownerID, "kind", kind, "size", content.Size, "task_id", task.ID)
	return &driving.UploadResult{Content: content, TaskID: task.ID}, nil
}

// Get retrieves a content record
func (s *contentService) Get(ctx context.Context, ownerID, id string) (*domain.Content, error) {
	return s.services.Contents().GetForOwner(ctx, ownerID, id)
}

// List retrieves the owner's content, newest first
func (s *contentService) List(ctx context.Context, ownerID string, filter domain.ContentFilter) ([]*domain.Content, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidInput, filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.services.Contents().List(ctx, ownerID, filter)
}

// UpdateTag sets the user tag
func (s *contentService) UpdateTag(ctx context.Context, ownerID, id string, tag bool) (*domain.Content, error) {
	return s.services.Contents().UpdateTag(ctx, ownerID, id, tag)
}

// Delete removes the embedding first so the item leaves search results,
// then the stored bytes, then the record. If the bytes cannot be removed
// the record is kept (as failed) so the delete can be retried.
func (s *contentService) Delete(ctx context.Context, ownerID, id string) error {
	content, err := s.services.Contents().GetForOwner(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if err := s.services.Vectors().Delete(ctx, content.ID); err != nil {
		return fmt.Errorf("delete embedding: %w", err)
	}

	if err := s.services.Blobs().Delete(ctx, content.LogicalPath); err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("delete content bytes: %w", err)
		}
		s.logger.Warn("content bytes already missing", "content_id", content.ID, "path", content.LogicalPath)
	}

	if content.Kind == domain.ContentKindImage {
		thumb := domain.ThumbnailPath(content.LogicalPath)
		if err := s.services.Blobs().Delete(ctx, thumb); err != nil && !errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("failed to delete thumbnail", "content_id", content.ID, "path", thumb, "error", err)
		}
	}

	if err := s.services.Contents().Delete(ctx, content.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete content record: %w", err)
	}

	s.logger.Info("content deleted", "content_id", content.ID, "owner_id", ownerID)
	return nil
}

// Download returns the stored bytes with their record
func (s *contentService) Download(ctx context.Context, ownerID, id string) (*domain.Content, []byte, error) {
	content, err := s.services.Contents().GetForOwner(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.services.Blobs().Get(ctx, content.LogicalPath)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil, domain.ErrNotFound
		}
		return nil, nil, fmt.Errorf("read content bytes: %w", err)
	}
	return content, data, nil
}

// Thumbnail returns the JPEG preview of image content. Previews are
// rendered on first request and cached next to the original; a failed
// cache write only costs a re-render. Content without a preview (not an
// image, undecodable, or thumbnails disabled) is reported as not found.
func (s *contentService) Thumbnail(ctx context.Context, ownerID, id string) ([]byte, error) {
	content, err := s.services.Contents().GetForOwner(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	thumbnails := s.services.Thumbnails()
	if content.Kind != domain.ContentKindImage || thumbnails == nil {
		return nil, fmt.Errorf("%w: no thumbnail for %s content", domain.ErrNotFound, content.Kind)
	}

	blobs := s.services.Blobs()
	thumbPath := domain.ThumbnailPath(content.LogicalPath)
	cached, err := blobs.Get(ctx, thumbPath)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("read thumbnail: %w", err)
	}

	original, err := blobs.Get(ctx, content.LogicalPath)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("read content bytes: %w", err)
	}

	thumb, err := thumbnails.Thumbnail(original)
	if err != nil {
		if errors.Is(err, domain.ErrNotSupported) {
			s.logger.Warn("cannot render thumbnail", "content_id", content.ID, "error", err)
			return nil, fmt.Errorf("%w: %v", domain.ErrNotFound, err)
		}
		return nil, fmt.Errorf("render thumbnail: %w", err)
	}

	if err := blobs.Put(ctx, thumbPath, thumb); err != nil {
		s.logger.Warn("failed to cache thumbnail", "content_id", content.ID, "path", thumbPath, "error", err)
	}
	return thumb, nil
}

// Reindex gives failed or stuck pending content another embedding task.
// Ready content already has its vector and is rejected.
func (s *contentService) Reindex(ctx context.Context, ownerID, id string) (*driving.UploadResult, error) {
	contents := s.services.Contents()
	content, err := contents.GetForOwner(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	switch content.Status {
	case domain.ContentStatusReady:
		return nil, fmt.Errorf("%w: content is already indexed", domain.ErrInvalidInput)
	case domain.ContentStatusFailed:
		if err := contents.MarkPending(ctx, content.ID); err != nil {
			return nil, err
		}
		content.Status = domain.ContentStatusPending
		content.Error = ""
	}

	task := domain.NewEmbedContentTask(ownerID, content.ID).WithMaxAttempts(s.services.Settings().MaxAttempts)
	if err := s.services.Queue().Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue embedding task: %w", err)
	}

	s.logger.Info("content reindex requested", "content_id", content.ID, "task_id", task.ID)
	return &driving.UploadResult{Content: content, TaskID: task.ID}, nil
}

// AllowedExtensions lists the accepted file extensions
func (s *contentService) AllowedExtensions() []string {
	return s.policy.Extensions()
}
