package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
)

// Ensure OllamaEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*OllamaEmbedding)(nil)

// OllamaEmbedding calls a local Ollama server's /api/embed endpoint. Text only.
type OllamaEmbedding struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

type ollamaRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type ollamaResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// NewOllamaEmbedding creates a client for the Ollama server at baseURL
func NewOllamaEmbedding(baseURL, model string, dimensions int) (*OllamaEmbedding, error) {
	if model == "" {
		return nil, fmt.Errorf("%w: ollama embedding requires a model", domain.ErrInvalidInput)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be positive", domain.ErrInvalidInput)
	}
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaEmbedding{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		client:     newHTTPClient(),
	}, nil
}

// Embed embeds text content; other kinds are not supported
func (e *OllamaEmbedding) Embed(ctx context.Context, data []byte, kind domain.ContentKind) ([]float32, error) {
	if err := textOnly(domain.AIProviderOllama, kind); err != nil {
		return nil, err
	}

	var resp ollamaResponse
	err := postJSON(ctx, e.client, e.baseURL+"/api/embed", nil, ollamaRequest{
		Model: e.model,
		Input: string(data),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", domain.ErrEmbeddingFailed)
	}
	return resp.Embeddings[0], nil
}

// Dimensions returns the configured vector size
func (e *OllamaEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *OllamaEmbedding) Model() string {
	return e.model
}

// HealthCheck checks the server answers its version endpoint
func (e *OllamaEmbedding) HealthCheck(ctx context.Context) error {
	return getOK(ctx, e.client, e.baseURL+"/api/version", nil)
}

// Close releases idle connections
func (e *OllamaEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
