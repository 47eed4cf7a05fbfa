package domain

import (
	"errors"
	"testing"
)

func TestAIProvider(t *testing.T) {
	tests := []struct {
		provider   AIProvider
		valid      bool
		requiresKy bool
	}{
		{AIProviderMultimodal, true, false},
		{AIProviderOpenAI, true, true},
		{AIProviderOllama, true, false},
		{AIProvider("cohere"), false, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			if tt.provider.IsValid() != tt.valid {
				t.Errorf("IsValid: expected %v", tt.valid)
			}
			if tt.provider.RequiresAPIKey() != tt.requiresKy {
				t.Errorf("RequiresAPIKey: expected %v", tt.requiresKy)
			}
		})
	}
}

func TestEmbeddingSettings_Validate(t *testing.T) {
	tests := []struct {
		name     string
		settings EmbeddingSettings
		wantErr  error
	}{
		{"valid multimodal", EmbeddingSettings{Provider: AIProviderMultimodal, Dimensions: 1024}, nil},
		{"valid openai", EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "sk", Dimensions: 1536}, nil},
		{"unknown provider", EmbeddingSettings{Provider: "foo", Dimensions: 8}, ErrInvalidProvider},
		{"no dimensions", EmbeddingSettings{Provider: AIProviderOllama}, ErrInvalidInput},
		{"missing key", EmbeddingSettings{Provider: AIProviderOpenAI, Dimensions: 8}, ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.settings.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestEmbeddingSettings_IsConfigured(t *testing.T) {
	s := &EmbeddingSettings{}
	if s.IsConfigured() {
		t.Error("empty settings should not be configured")
	}
	s.Provider = AIProviderOllama
	if !s.IsConfigured() {
		t.Error("ollama needs no key")
	}
}

func TestStorageBackend_IsValid(t *testing.T) {
	if !StorageBackendLocal.IsValid() || !StorageBackendMinio.IsValid() {
		t.Error("expected known backends to be valid")
	}
	if StorageBackend("s3").IsValid() {
		t.Error("expected unknown backend to be invalid")
	}
}

func TestDefaultPipelineSettings(t *testing.T) {
	s := DefaultPipelineSettings()
	if s.Dimensions != 1024 {
		t.Errorf("expected 1024 dimensions, got %d", s.Dimensions)
	}
	if s.MaxAttempts != 3 {
		t.Errorf("expected 3 attempts, got %d", s.MaxAttempts)
	}
	if s.MaxUploadBytes != 16*1024*1024 {
		t.Errorf("expected 16MiB, got %d", s.MaxUploadBytes)
	}
	if s.Search.Limit != DefaultSearchLimit {
		t.Errorf("expected limit %d, got %d", DefaultSearchLimit, s.Search.Limit)
	}
}
