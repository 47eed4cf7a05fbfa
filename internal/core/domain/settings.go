package domain

import "fmt"

// AIProvider identifies the embedding provider
type AIProvider string

const (
	// AIProviderMultimodal is a self-hosted model server that embeds raw bytes of any kind
	AIProviderMultimodal AIProvider = "multimodal"
	AIProviderOpenAI     AIProvider = "openai"
	AIProviderOllama     AIProvider = "ollama"
)

// RequiresAPIKey returns true for hosted providers
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsValid reports whether p is a known provider
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderMultimodal, AIProviderOpenAI, AIProviderOllama:
		return true
	default:
		return false
	}
}

// DefaultEmbeddingDimensions matches the multimodal model the pipeline was built around
const DefaultEmbeddingDimensions = 1024

// EmbeddingSettings configures the embedding service
type EmbeddingSettings struct {
	Provider   AIProvider `json:"provider"`
	Model      string     `json:"model"`
	APIKey     string     `json:"-"` // Never serialize to JSON
	BaseURL    string     `json:"base_url,omitempty"`
	Dimensions int        `json:"dimensions"`
}

// IsConfigured returns true if embedding settings are properly configured
func (e *EmbeddingSettings) IsConfigured() bool {
	if e.Provider == "" {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// Validate checks the settings are usable by the pipeline
func (e *EmbeddingSettings) Validate() error {
	if !e.Provider.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidProvider, e.Provider)
	}
	if e.Dimensions <= 0 {
		return fmt.Errorf("%w: embedding dimensions must be positive", ErrInvalidInput)
	}
	if !e.IsConfigured() {
		return fmt.Errorf("%w: %s requires an API key", ErrInvalidInput, e.Provider)
	}
	return nil
}

// StorageBackend selects where content bytes live
type StorageBackend string

const (
	StorageBackendLocal StorageBackend = "local"
	StorageBackendMinio StorageBackend = "minio"
)

// IsValid reports whether b is a known backend
func (b StorageBackend) IsValid() bool {
	return b == StorageBackendLocal || b == StorageBackendMinio
}

// PipelineSettings holds the process-wide constants of the indexing and search pipeline
type PipelineSettings struct {
	Dimensions     int           `json:"dimensions"`
	MaxAttempts    int           `json:"max_attempts"`
	MaxUploadBytes int64         `json:"max_upload_bytes"`
	Search         SearchOptions `json:"search"`
}

// DefaultMaxUploadBytes is 16 MiB
const DefaultMaxUploadBytes int64 = 16 << 20

// DefaultPipelineSettings returns sensible defaults
func DefaultPipelineSettings() PipelineSettings {
	return PipelineSettings{
		Dimensions:     DefaultEmbeddingDimensions,
		MaxAttempts:    DefaultMaxAttempts,
		MaxUploadBytes: DefaultMaxUploadBytes,
		Search:         DefaultSearchOptions(),
	}
}
