package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorStore = (*VectorStore)(nil)

// VectorStore implements driven.VectorStore on a pgvector column.
// Similarity is cosine: 1 - (embedding <=> query).
type VectorStore struct {
	db         *DB
	dimensions int
}

// NewVectorStore creates a new VectorStore for vectors of the given size
func NewVectorStore(db *DB, dimensions int) *VectorStore {
	return &VectorStore{db: db, dimensions: dimensions}
}

// Dimensions returns the configured vector size
func (s *VectorStore) Dimensions() int {
	return s.dimensions
}

// UpsertAndMarkReady writes the vector and flips the content to ready in one
// transaction. The content row is locked first so a concurrent delete either
// happens before (ErrNotFound) or after (cascade removes the vector).
func (s *VectorStore) UpsertAndMarkReady(ctx context.Context, e *domain.Embedding) error {
	if err := domain.ValidateDimensions(e.Vector, s.dimensions); err != nil {
		return err
	}
	if !validID(e.ContentID) {
		return domain.ErrNotFound
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		var id string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM contents WHERE id = $1 FOR UPDATE`, e.ContentID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("lock content: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO embeddings (content_id, embedding, model_version, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (content_id) DO UPDATE SET
				embedding = EXCLUDED.embedding,
				model_version = EXCLUDED.model_version,
				created_at = EXCLUDED.created_at
		`, e.ContentID, pgvector.NewVector(e.Vector), e.ModelVersion, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("upsert embedding: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE contents SET status = 'ready', error = '', updated_at = NOW()
			WHERE id = $1
		`, e.ContentID)
		if err != nil {
			return fmt.Errorf("mark content ready: %w", err)
		}
		return nil
	})
}

// Get retrieves the embedding for a content item
func (s *VectorStore) Get(ctx context.Context, contentID string) (*domain.Embedding, error) {
	if !validID(contentID) {
		return nil, domain.ErrNotFound
	}
	var e domain.Embedding
	var v pgvector.Vector
	err := s.db.QueryRowContext(ctx, `
		SELECT content_id, embedding, model_version, created_at
		FROM embeddings WHERE content_id = $1
	`, contentID).Scan(&e.ContentID, &v, &e.ModelVersion, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	e.Vector = v.Slice()
	return &e, nil
}

// Delete removes the embedding and demotes ready content to failed in the
// same transaction.
func (s *VectorStore) Delete(ctx context.Context, contentID string) error {
	if !validID(contentID) {
		return nil
	}
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE content_id = $1`, contentID); err != nil {
			return fmt.Errorf("delete embedding: %w", err)
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE contents SET status = 'failed', error = 'embedding removed', updated_at = NOW()
			WHERE id = $1 AND status = 'ready'
		`, contentID)
		if err != nil {
			return fmt.Errorf("demote content: %w", err)
		}
		return nil
	})
}

// Search ranks the owner's ready content by cosine similarity to vector
func (s *VectorStore) Search(ctx context.Context, ownerID string, vector []float32, opts domain.SearchOptions) ([]*domain.ScoredContent, error) {
	if err := domain.ValidateDimensions(vector, s.dimensions); err != nil {
		return nil, err
	}
	query, args := buildSearchQuery(ownerID, pgvector.NewVector(vector), opts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []*domain.ScoredContent
	for rows.Next() {
		var h domain.ScoredContent
		if err := rows.Scan(&h.ContentID, &h.Similarity); err != nil {
			return nil, fmt.Errorf("scan hit: %w", err)
		}
		hits = append(hits, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate hits: %w", err)
	}
	return hits, nil
}

// buildSearchQuery ranks every ready row of the owner by exact cosine
// distance, then applies the similarity floor if one was requested.
func buildSearchQuery(ownerID string, vector pgvector.Vector, opts domain.SearchOptions) (string, []any) {
	query := `
		SELECT e.content_id, 1 - (e.embedding <=> $1) AS similarity
		FROM embeddings e
		JOIN contents c ON c.id = e.content_id
		WHERE c.owner_id = $2 AND c.status = 'ready'`
	args := []any{vector, ownerID}

	if opts.MinSimilarity > 0 {
		args = append(args, opts.MinSimilarity)
		query += fmt.Sprintf(" AND 1 - (e.embedding <=> $1) >= $%d", len(args))
	}
	query += " ORDER BY e.embedding <=> $1, e.content_id"

	limit := opts.Limit
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	return query, args
}
