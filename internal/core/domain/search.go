package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Search limits
const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 100
)

// SearchOptions configures a search request
type SearchOptions struct {
	Limit         int     `json:"limit"`
	MinSimilarity float64 `json:"min_similarity"` // Only applied when > 0
}

// DefaultSearchOptions returns sensible defaults
func DefaultSearchOptions() SearchOptions {
	return SearchOptions{
		Limit: DefaultSearchLimit,
	}
}

// Normalize fills in defaults and clamps the limit
func (o SearchOptions) Normalize(defaults SearchOptions) SearchOptions {
	if o.Limit <= 0 {
		o.Limit = defaults.Limit
	}
	if o.Limit <= 0 {
		o.Limit = DefaultSearchLimit
	}
	if o.Limit > MaxSearchLimit {
		o.Limit = MaxSearchLimit
	}
	if o.MinSimilarity <= 0 {
		o.MinSimilarity = defaults.MinSimilarity
	}
	return o
}

// Embedding is the stored vector for one content item
type Embedding struct {
	ContentID    string    `json:"content_id"`
	Vector       []float32 `json:"-"`
	ModelVersion string    `json:"model_version"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewEmbedding validates the vector dimension and builds an Embedding
func NewEmbedding(contentID string, vector []float32, modelVersion string, dimensions int) (*Embedding, error) {
	if err := ValidateDimensions(vector, dimensions); err != nil {
		return nil, err
	}
	return &Embedding{
		ContentID:    contentID,
		Vector:       vector,
		ModelVersion: modelVersion,
		CreatedAt:    time.Now(),
	}, nil
}

// ValidateDimensions returns ErrDimensionMismatch unless len(vector) == dimensions
func ValidateDimensions(vector []float32, dimensions int) error {
	if len(vector) != dimensions {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vector), dimensions)
	}
	return nil
}

// QueryType records what a query vector was built from
type QueryType string

const (
	QueryTypeText      QueryType = "text"
	QueryTypeFile      QueryType = "file"
	QueryTypeMultipart QueryType = "multipart" // text plus one or more files
)

// MaxQueryFiles caps the number of files in one query
const MaxQueryFiles = 8

// Query is a persisted search. Immutable once created.
// Files are embedded at query time and only their names are kept.
type Query struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Text      string    `json:"text"`
	Type      QueryType `json:"query_type"`
	FileNames []string  `json:"file_names,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewQuery creates a text query record with a fresh ID
func NewQuery(ownerID, text string) *Query {
	return &Query{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Text:      text,
		Type:      QueryTypeText,
		CreatedAt: time.Now(),
	}
}

// NewFileQuery creates a query record for uploaded query files with optional text
func NewFileQuery(ownerID, text string, fileNames []string) *Query {
	q := NewQuery(ownerID, text)
	q.FileNames = fileNames
	switch {
	case len(fileNames) == 0:
	case text == "":
		q.Type = QueryTypeFile
	default:
		q.Type = QueryTypeMultipart
	}
	return q
}

// QueryFile is one file submitted as (part of) a search query
type QueryFile struct {
	Filename string
	Data     []byte
}

// MeanVector averages vectors of equal length component-wise.
// Returns ErrDimensionMismatch if the lengths differ.
func MeanVector(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: no vectors to combine", ErrInvalidInput)
	}
	dims := len(vectors[0])
	sum := make([]float64, dims)
	for _, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(v), dims)
		}
		for i, x := range v {
			sum[i] += float64(x)
		}
	}
	out := make([]float32, dims)
	n := float64(len(vectors))
	for i := range sum {
		out[i] = float32(sum[i] / n)
	}
	return out, nil
}

// ScoredContent is a nearest-neighbour hit returned by the vector store
type ScoredContent struct {
	ContentID  string  `json:"content_id"`
	Similarity float64 `json:"similarity_score"`
}

// SearchResult is one row of a query's point-in-time ranking
type SearchResult struct {
	QueryID         string    `json:"query_id"`
	ContentID       string    `json:"content_id"`
	Rank            int       `json:"rank"`
	SimilarityScore float64   `json:"similarity_score"`
	RetrievedAt     time.Time `json:"retrieved_at"`
}

// NewSearchResults turns ranked hits into result rows for query. Hits must
// already be ordered by similarity descending; rank starts at 1.
func NewSearchResults(query *Query, hits []*ScoredContent) []*SearchResult {
	now := time.Now()
	results := make([]*SearchResult, 0, len(hits))
	for i, h := range hits {
		results = append(results, &SearchResult{
			QueryID:         query.ID,
			ContentID:       h.ContentID,
			Rank:            i + 1,
			SimilarityScore: h.Similarity,
			RetrievedAt:     now,
		})
	}
	return results
}

// SearchOutcome is returned to the caller of a search
type SearchOutcome struct {
	QueryID string          `json:"query_id"`
	Query   *Query          `json:"query"`
	Results []*SearchResult `json:"results"`
	Took    time.Duration   `json:"took" swaggertype:"integer" example:"1500000"`
}

// HistoryResult is a stored result joined with whatever is left of its content
type HistoryResult struct {
	*SearchResult
	Available bool            `json:"available"`
	Content   *ContentSummary `json:"content,omitempty"`
}

// QueryWithResults combines a query with its stored ranking
type QueryWithResults struct {
	Query   *Query           `json:"query"`
	Results []*HistoryResult `json:"results"`
}
