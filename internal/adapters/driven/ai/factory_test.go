package ai

import (
	"testing"

	"github.com/custodia-labs/semdex/internal/core/domain"
)

func TestFactory_CreateEmbeddingService(t *testing.T) {
	f := NewFactory()

	tests := []struct {
		name     string
		settings *domain.EmbeddingSettings
		wantType string
		wantNil  bool
		wantErr  bool
	}{
		{name: "nil settings", settings: nil, wantNil: true},
		{name: "no provider", settings: &domain.EmbeddingSettings{}, wantNil: true},
		{name: "openai without key", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, Dimensions: 1536}, wantNil: true},
		{
			name:     "multimodal",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderMultimodal, BaseURL: "http://models:8000", Dimensions: 1024},
			wantType: "multimodal",
		},
		{
			name:     "openai",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOpenAI, APIKey: "sk-test", Dimensions: 1024},
			wantType: "openai",
		},
		{
			name:     "ollama",
			settings: &domain.EmbeddingSettings{Provider: domain.AIProviderOllama, Model: "nomic-embed-text", Dimensions: 768},
			wantType: "ollama",
		},
		{name: "unknown provider", settings: &domain.EmbeddingSettings{Provider: "cohere", Dimensions: 1024}, wantErr: true},
		{name: "multimodal without url", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderMultimodal, Dimensions: 1024}, wantErr: true},
		{name: "zero dimensions", settings: &domain.EmbeddingSettings{Provider: domain.AIProviderMultimodal, BaseURL: "http://x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := f.CreateEmbeddingService(tt.settings)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil {
				if svc != nil {
					t.Errorf("expected nil service, got %T", svc)
				}
				return
			}

			var got string
			switch svc.(type) {
			case *MultimodalEmbedding:
				got = "multimodal"
			case *OpenAIEmbedding:
				got = "openai"
			case *OllamaEmbedding:
				got = "ollama"
			}
			if got != tt.wantType {
				t.Errorf("expected %s service, got %T", tt.wantType, svc)
			}
			if svc.Dimensions() != tt.settings.Dimensions {
				t.Errorf("expected %d dimensions, got %d", tt.settings.Dimensions, svc.Dimensions())
			}
		})
	}
}
