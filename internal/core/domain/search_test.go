package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchOptions_Normalize(t *testing.T) {
	defaults := SearchOptions{Limit: 10, MinSimilarity: 0.2}

	opts := SearchOptions{}.Normalize(defaults)
	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, 0.2, opts.MinSimilarity)

	opts = SearchOptions{Limit: 500, MinSimilarity: 0.5}.Normalize(defaults)
	assert.Equal(t, MaxSearchLimit, opts.Limit)
	assert.Equal(t, 0.5, opts.MinSimilarity)

	opts = SearchOptions{}.Normalize(SearchOptions{})
	assert.Equal(t, DefaultSearchLimit, opts.Limit)
}

func TestNewEmbedding(t *testing.T) {
	e, err := NewEmbedding("c1", []float32{1, 2, 3}, "model-v1", 3)
	require.NoError(t, err)
	assert.Equal(t, "c1", e.ContentID)
	assert.Equal(t, "model-v1", e.ModelVersion)
	assert.False(t, e.CreatedAt.IsZero())

	_, err = NewEmbedding("c1", []float32{1, 2}, "model-v1", 3)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestNewQuery(t *testing.T) {
	a := NewQuery("u1", "cats")
	b := NewQuery("u1", "cats")
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, "cats", a.Text)
	assert.Equal(t, "u1", a.OwnerID)
}

func TestNewFileQuery(t *testing.T) {
	q := NewFileQuery("u1", "", []string{"cat.jpg"})
	assert.Equal(t, QueryTypeFile, q.Type)
	assert.Equal(t, []string{"cat.jpg"}, q.FileNames)

	q = NewFileQuery("u1", "cats", []string{"cat.jpg", "purr.wav"})
	assert.Equal(t, QueryTypeMultipart, q.Type)

	q = NewFileQuery("u1", "cats", nil)
	assert.Equal(t, QueryTypeText, q.Type)
	assert.Equal(t, QueryTypeText, NewQuery("u1", "cats").Type)
}

func TestMeanVector(t *testing.T) {
	mean, err := MeanVector([][]float32{{1, 0, 2}, {0, 1, 4}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0.5, 0.5, 3}, mean, 1e-6)

	single, err := MeanVector([][]float32{{1, 2}})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, single)

	_, err = MeanVector([][]float32{{1, 2}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = MeanVector(nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestNewSearchResults(t *testing.T) {
	q := NewQuery("u1", "dogs")
	hits := []*ScoredContent{
		{ContentID: "a", Similarity: 0.9},
		{ContentID: "b", Similarity: 0.5},
	}

	results := NewSearchResults(q, hits)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, 2, results[1].Rank)
	assert.Equal(t, q.ID, results[1].QueryID)
	assert.Equal(t, "b", results[1].ContentID)
	assert.Equal(t, results[0].RetrievedAt, results[1].RetrievedAt)

	assert.Empty(t, NewSearchResults(q, nil))
}
