package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

// ContentStore handles persistence of content records
type ContentStore interface {
	// Save inserts a new content record
	Save(ctx context.Context, content *domain.Content) error

	// Get retrieves a content record by ID regardless of owner (worker use)
	Get(ctx context.Context, id string) (*domain.Content, error)

	// GetForOwner retrieves a content record owned by ownerID.
	// Returns domain.ErrNotFound for other owners' content.
	GetForOwner(ctx context.Context, ownerID, id string) (*domain.Content, error)

	// List retrieves an owner's content, newest first
	List(ctx context.Context, ownerID string, filter domain.ContentFilter) ([]*domain.Content, error)

	// UpdateTag sets the user-controlled tag
	UpdateTag(ctx context.Context, ownerID, id string, tag bool) (*domain.Content, error)

	// MarkFailed moves pending content to failed with a reason.
	// Content in any other state is left alone.
	MarkFailed(ctx context.Context, id string, reason string) error

	// MarkPending moves failed content back to pending for another attempt.
	// Content in any other state is left alone.
	MarkPending(ctx context.Context, id string) error

	// Delete removes the content record
	Delete(ctx context.Context, id string) error

	// ClaimStalePending returns up to limit pending items last touched before
	// the cutoff and bumps their updated_at so the next sweep skips them.
	ClaimStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Content, error)
}
