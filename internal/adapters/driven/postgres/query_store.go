package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
)

const queryColumns = `id, owner_id, text, query_type, file_names, created_at`

// queryDest returns the scan targets matching queryColumns
func queryDest(q *domain.Query) []any {
	return []any{&q.ID, &q.OwnerID, &q.Text, &q.Type, (*pq.StringArray)(&q.FileNames), &q.CreatedAt}
}

func queryType(q *domain.Query) domain.QueryType {
	if q.Type == "" {
		return domain.QueryTypeText
	}
	return q.Type
}

// fileNames never returns nil so the NOT NULL column gets an empty array
func fileNames(q *domain.Query) []string {
	if q.FileNames == nil {
		return []string{}
	}
	return q.FileNames
}

// Verify interface compliance
var _ driven.QueryStore = (*QueryStore)(nil)

// QueryStore implements driven.QueryStore using PostgreSQL
type QueryStore struct {
	db *DB
}

// NewQueryStore creates a new QueryStore
func NewQueryStore(db *DB) *QueryStore {
	return &QueryStore{db: db}
}

// SaveWithResults writes the query and its results in one transaction
func (s *QueryStore) SaveWithResults(ctx context.Context, q *domain.Query, results []*domain.SearchResult) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO queries (id, owner_id, text, query_type, file_names, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
			q.ID, q.OwnerID, q.Text, queryType(q), pq.Array(fileNames(q)), q.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert query: %w", err)
		}
		if len(results) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO search_results (query_id, content_id, rank, similarity_score, retrieved_at)
			VALUES ($1, $2, $3, $4, $5)
		`)
		if err != nil {
			return fmt.Errorf("prepare result insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range results {
			if _, err := stmt.ExecContext(ctx, r.QueryID, r.ContentID, r.Rank, r.SimilarityScore, r.RetrievedAt); err != nil {
				return fmt.Errorf("insert result rank %d: %w", r.Rank, err)
			}
		}
		return nil
	})
}

// Get returns the query with its results left-joined to surviving content
func (s *QueryStore) Get(ctx context.Context, ownerID, queryID string) (*domain.QueryWithResults, error) {
	if !validID(queryID) {
		return nil, domain.ErrNotFound
	}

	var q domain.Query
	err := s.db.QueryRowContext(ctx,
		`SELECT `+queryColumns+` FROM queries WHERE id = $1 AND owner_id = $2`,
		queryID, ownerID).Scan(queryDest(&q)...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.query_id, r.content_id, r.rank, r.similarity_score, r.retrieved_at,
		       c.id, c.original_filename, c.kind, c.tag
		FROM search_results r
		LEFT JOIN contents c ON c.id = r.content_id
		WHERE r.query_id = $1
		ORDER BY r.rank
	`, queryID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	out := &domain.QueryWithResults{Query: &q, Results: []*domain.HistoryResult{}}
	for rows.Next() {
		var r domain.SearchResult
		var cID, cName, cKind sql.NullString
		var cTag sql.NullBool
		if err := rows.Scan(&r.QueryID, &r.ContentID, &r.Rank, &r.SimilarityScore, &r.RetrievedAt,
			&cID, &cName, &cKind, &cTag); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}

		hr := &domain.HistoryResult{SearchResult: &r}
		if cID.Valid {
			hr.Available = true
			hr.Content = &domain.ContentSummary{
				ID:               cID.String,
				OriginalFilename: cName.String,
				Kind:             domain.ContentKind(cKind.String),
				Tag:              cTag.Bool,
			}
		}
		out.Results = append(out.Results, hr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return out, nil
}

// List retrieves an owner's queries, newest first
func (s *QueryStore) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Query, error) {
	query, args := pageClause(
		`SELECT `+queryColumns+` FROM queries WHERE owner_id = $1 ORDER BY created_at DESC, id`,
		[]any{ownerID}, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []*domain.Query
	for rows.Next() {
		var q domain.Query
		if err := rows.Scan(queryDest(&q)...); err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		out = append(out, &q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queries: %w", err)
	}
	return out, nil
}

// Delete removes a query; its results cascade
func (s *QueryStore) Delete(ctx context.Context, ownerID, queryID string) error {
	if !validID(queryID) {
		return domain.ErrNotFound
	}
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM queries WHERE id = $1 AND owner_id = $2`, queryID, ownerID)
	if err != nil {
		return fmt.Errorf("delete query: %w", err)
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
