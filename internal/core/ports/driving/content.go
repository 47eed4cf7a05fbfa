package driving

import (
	"context"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// UploadResult is returned when an upload has been accepted
type UploadResult struct {
	Content *domain.Content `json:"content"`
	TaskID  string          `json:"task_id,omitempty"`
}

// ContentService manages a user's uploaded content. Every call is scoped
// to ownerID; other owners' content is reported as domain.ErrNotFound.
type ContentService interface {
	// Upload validates, stores and registers a file and enqueues its embedding
	Upload(ctx context.Context, ownerID, filename string, data []byte) (*UploadResult, error)

	// Get retrieves a content record
	Get(ctx context.Context, ownerID, id string) (*domain.Content, error)

	// List retrieves the owner's content
	List(ctx context.Context, ownerID string, filter domain.ContentFilter) ([]*domain.Content, error)

	// UpdateTag sets the user tag
	UpdateTag(ctx context.Context, ownerID, id string, tag bool) (*domain.Content, error)

	// Delete removes the embedding, the bytes and the record, in that order
	Delete(ctx context.Context, ownerID, id string) error

	// Download returns the stored bytes with their record
	Download(ctx context.Context, ownerID, id string) (*domain.Content, []byte, error)

	// Thumbnail returns the JPEG preview of image content
	Thumbnail(ctx context.Context, ownerID, id string) ([]byte, error)

	// Reindex resets failed content to pending and enqueues a new embedding task
	Reindex(ctx context.Context, ownerID, id string) (*UploadResult, error)

	// AllowedExtensions lists the accepted file extensions
	AllowedExtensions() []string
}
