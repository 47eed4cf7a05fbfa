package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ContentStore = (*ContentStore)(nil)

const contentColumns = `id, owner_id, logical_path, original_filename, kind, tag, status, size, error, created_at, updated_at`

// ContentStore implements driven.ContentStore using PostgreSQL
type ContentStore struct {
	db *DB
}

// NewContentStore creates a new ContentStore
func NewContentStore(db *DB) *ContentStore {
	return &ContentStore{db: db}
}

// validID reports whether id can be compared against a UUID column.
// Anything else cannot match a row and is reported as not found.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Save inserts a new content record
func (s *ContentStore) Save(ctx context.Context, c *domain.Content) error {
	query := `INSERT INTO contents (` + contentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.OwnerID, c.LogicalPath, c.OriginalFilename, string(c.Kind),
		c.Tag, string(c.Status), c.Size, c.Error, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert content: %w", err)
	}
	return nil
}

// Get retrieves a content record by ID
func (s *ContentStore) Get(ctx context.Context, id string) (*domain.Content, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM contents WHERE id = $1`, id)
	return scanContent(row)
}

// GetForOwner retrieves a content record owned by ownerID
func (s *ContentStore) GetForOwner(ctx context.Context, ownerID, id string) (*domain.Content, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+contentColumns+` FROM contents WHERE id = $1 AND owner_id = $2`, id, ownerID)
	return scanContent(row)
}

// List retrieves an owner's content, newest first
func (s *ContentStore) List(ctx context.Context, ownerID string, filter domain.ContentFilter) ([]*domain.Content, error) {
	query := `SELECT ` + contentColumns + ` FROM contents WHERE owner_id = $1`
	args := []any{ownerID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Tag != nil {
		args = append(args, *filter.Tag)
		query += fmt.Sprintf(" AND tag = $%d", len(args))
	}
	query += " ORDER BY created_at DESC, id"
	query, args = pageClause(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query contents: %w", err)
	}
	defer rows.Close()
	return scanContents(rows)
}

// UpdateTag sets the user-controlled tag
func (s *ContentStore) UpdateTag(ctx context.Context, ownerID, id string, tag bool) (*domain.Content, error) {
	if !validID(id) {
		return nil, domain.ErrNotFound
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE contents SET tag = $1, updated_at = NOW()
		WHERE id = $2 AND owner_id = $3
		RETURNING `+contentColumns, tag, id, ownerID)
	return scanContent(row)
}

// MarkFailed moves pending content to failed
func (s *ContentStore) MarkFailed(ctx context.Context, id string, reason string) error {
	return s.transition(ctx, id, domain.ContentStatusPending, domain.ContentStatusFailed, reason)
}

// MarkPending moves failed content back to pending
func (s *ContentStore) MarkPending(ctx context.Context, id string) error {
	return s.transition(ctx, id, domain.ContentStatusFailed, domain.ContentStatusPending, "")
}

// transition changes status only when the row is in the expected state.
// A row in another state is left alone; a missing row is ErrNotFound.
func (s *ContentStore) transition(ctx context.Context, id string, from, to domain.ContentStatus, reason string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	var exists, changed bool
	err := s.db.QueryRowContext(ctx, `
		WITH updated AS (
			UPDATE contents SET status = $1, error = $2, updated_at = NOW()
			WHERE id = $3 AND status = $4
			RETURNING id
		)
		SELECT EXISTS (SELECT 1 FROM contents WHERE id = $3),
		       EXISTS (SELECT 1 FROM updated)
	`, string(to), reason, id, string(from)).Scan(&exists, &changed)
	if err != nil {
		return fmt.Errorf("update content status: %w", err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes the content record. Its embedding goes with it (cascade).
func (s *ContentStore) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrNotFound
	}
	result, err := s.db.ExecContext(ctx, `DELETE FROM contents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ClaimStalePending returns pending rows untouched since before and bumps
// their updated_at. SKIP LOCKED keeps two sweepers from claiming the same rows.
func (s *ContentStore) ClaimStalePending(ctx context.Context, before time.Time, limit int) ([]*domain.Content, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		UPDATE contents SET updated_at = NOW()
		WHERE id IN (
			SELECT id FROM contents
			WHERE status = 'pending' AND updated_at < $1
			ORDER BY updated_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+contentColumns, before, limit)
	if err != nil {
		return nil, fmt.Errorf("claim stale content: %w", err)
	}
	defer rows.Close()
	return scanContents(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContentRow(row rowScanner) (*domain.Content, error) {
	var c domain.Content
	var kind, status string
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.LogicalPath, &c.OriginalFilename, &kind,
		&c.Tag, &status, &c.Size, &c.Error, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Kind = domain.ContentKind(kind)
	c.Status = domain.ContentStatus(status)
	return &c, nil
}

func scanContent(row *sql.Row) (*domain.Content, error) {
	c, err := scanContentRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan content: %w", err)
	}
	return c, nil
}

func scanContents(rows *sql.Rows) ([]*domain.Content, error) {
	var out []*domain.Content
	for rows.Next() {
		c, err := scanContentRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contents: %w", err)
	}
	return out, nil
}
