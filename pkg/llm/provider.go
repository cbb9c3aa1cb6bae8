package llm

import (
	"context"
	"fmt"

	"github.com/xhad/brightpath/internal/types"
	"github.com/xhad/brightpath/pkg/config"
)

// NewFromConfig builds the completion and embedding clients for the configured provider.
func NewFromConfig(ctx context.Context, cfg config.LLMConfig, embedBatchSize int) (types.Completer, types.Embedder, error) {
	switch cfg.Provider {
	case "gemini":
		g, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:         cfg.APIKey,
			Model:          cfg.Model,
			EmbeddingModel: cfg.EmbeddingModel,
			Temperature:    cfg.Temperature,
			MaxTokens:      cfg.MaxTokens,
		})
		if err != nil {
			return nil, nil, err
		}
		return g, g, nil

	case "ollama", "openai":
		chat, err := NewWithConfig(ChatConfig{
			Provider:    cfg.Provider,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			BaseURL:     cfg.BaseURL,
			APIKey:      cfg.APIKey,
		})
		if err != nil {
			return nil, nil, err
		}
		emb, err := NewEmbedderWithConfig(EmbedderConfig{
			Provider:  cfg.Provider,
			Model:     cfg.EmbeddingModel,
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			BatchSize: embedBatchSize,
		})
		if err != nil {
			return nil, nil, err
		}
		return chat, emb, nil
	}

	return nil, nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
}
