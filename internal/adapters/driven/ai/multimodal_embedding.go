package ai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/custodia-labs/semdex/internal/core/domain"
	"github.com/custodia-labs/semdex/internal/core/ports/driven"
)

// Ensure MultimodalEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*MultimodalEmbedding)(nil)

// DefaultMultimodalModel is the model reported when none is configured
const DefaultMultimodalModel = "imagebind"

// MultimodalEmbedding calls a self-hosted model server that embeds text,
// images and audio into one vector space.
//
//	POST {base}/embed  {"model": "...", "kind": "image", "data": "<base64>"}
//	  -> {"embedding": [0.1, ...]}
//	GET  {base}/health -> 2xx
type MultimodalEmbedding struct {
	baseURL    string
	model      string
	apiKey     string
	dimensions int
	client     *http.Client
}

type multimodalRequest struct {
	Model string `json:"model"`
	Kind  string `json:"kind"`
	Data  string `json:"data"`
}

type multimodalResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewMultimodalEmbedding creates a client for the model server at baseURL
func NewMultimodalEmbedding(baseURL, model, apiKey string, dimensions int) (*MultimodalEmbedding, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: multimodal embedding requires a base URL", domain.ErrInvalidInput)
	}
	if dimensions <= 0 {
		return nil, fmt.Errorf("%w: embedding dimensions must be positive", domain.ErrInvalidInput)
	}
	if model == "" {
		model = DefaultMultimodalModel
	}
	return &MultimodalEmbedding{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		dimensions: dimensions,
		client:     newHTTPClient(),
	}, nil
}

// Embed sends the raw bytes with their kind to the model server
func (e *MultimodalEmbedding) Embed(ctx context.Context, data []byte, kind domain.ContentKind) ([]float32, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %s input", domain.ErrNotSupported, kind)
	}

	var resp multimodalResponse
	err := postJSON(ctx, e.client, e.baseURL+"/embed", e.headers(), multimodalRequest{
		Model: e.model,
		Kind:  string(kind),
		Data:  base64.StdEncoding.EncodeToString(data),
	}, &resp)
	if err != nil {
		return nil, err
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", domain.ErrEmbeddingFailed)
	}
	return resp.Embedding, nil
}

// Dimensions returns the configured vector size
func (e *MultimodalEmbedding) Dimensions() int {
	return e.dimensions
}

// Model returns the model name being used
func (e *MultimodalEmbedding) Model() string {
	return e.model
}

// HealthCheck asks the model server's health endpoint
func (e *MultimodalEmbedding) HealthCheck(ctx context.Context) error {
	return getOK(ctx, e.client, e.baseURL+"/health", e.headers())
}

// Close releases idle connections
func (e *MultimodalEmbedding) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

func (e *MultimodalEmbedding) headers() map[string]string {
	if e.apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + e.apiKey}
}
