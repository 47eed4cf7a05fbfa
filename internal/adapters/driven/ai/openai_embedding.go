package ai

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
)

// Ensure OpenAIEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*OpenAIEmbedding)(nil)

// OpenAIEmbedding implements EmbeddingService using OpenAI's embedding API.
// It reads text content only.
type OpenAIEmbedding struct {
	apiKey     string
	model      string
	baseURL    string
	dimensions int
	client     *http.Client
}

// Native output size of OpenAI embedding models
var openAIModelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// NewOpenAIEmbedding creates a new OpenAI embedding service. A dimensions
// value of zero keeps the model's native size.
func NewOpenAIEmbedding(apiKey, model, baseURL string, dimensions int) (*OpenAIEmbedding, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OpenAI API key is required", domain.ErrInvalidInput)
	}
	if model == "" {
		model = "text-embedding-3-small"
	}
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if dimensions <= 0 {
		dimensions = openAIModelDimensions[model]
		if dimensions == 0 {
			dimensions = 1536
		}
	}

	return &OpenAIEmbedding{
		apiKey:     apiKey,
		model:      model,
		baseURL:    strings.TrimRight(baseURL, "/"),
		dimensions: dimensions,
		client:     newHTTPClient(),
	}, nil
}

type openAIRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format"`
	Dimensions     int    `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Model string `json:"model"`
}

// Embed embeds text content; other kinds are not supported
func (e *OpenAIEmbedding) Embed(ctx context.Context, data []byte, kind domain.ContentKind) ([]float32, error) {
	if err := textOnly(domain.AIProviderOpenAI, kind); err != nil {
		return nil, err
	}

	req := openAIRequest{
		Input:          string(data),
		Model:          e.model,
		EncodingFormat: "float",
	}
	// Only v3 models accept a shortened output size
	if strings.HasPrefix(e.model, "text-embedding-3") && e.dimensions != openAIModelDimensions[e.model] {
		req.Dimensions = e.dimensions
	}

	var resp openAIResponse
	if err := postJSON(ctx, e.client, e.baseURL+"/embeddings", e.headers(), req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", domain.ErrEmbeddingFailed)
	}
	return resp.Data[0].Embedding, nil
}

// Dimensions returns the embedding dimension size
func (e *OpenAIEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *OpenAIEmbedding) Model() string {
	return e.model
}

// HealthCheck lists the configured model, which costs no tokens
func (e *OpenAIEmbedding) HealthCheck(ctx context.Context) error {
	return getOK(ctx, e.client, e.baseURL+"/models/"+e.model, e.headers())
}

// Close releases resources held by the embedding service
func (e *OpenAIEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *OpenAIEmbedding) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + e.apiKey}
}
