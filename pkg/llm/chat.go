package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/xhad/brightpath/internal/models"
)

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

const defaultSystemTemplate = "You are an experienced technical recruiter. Answer strictly from the resume and role excerpts you are given and never invent facts."

// ChatConfig represents the configuration for a chat engine.
type ChatConfig struct {
	Provider       string // ollama or openai
	Model          string
	Temperature    float64
	MaxTokens      int
	SystemTemplate string
	BaseURL        string
	APIKey         string
}

// ChatEngine is an engine that uses an LLM to answer prompts.
type ChatEngine struct {
	config ChatConfig
	llm    llms.Model
}

// NewWithConfig creates a new ChatEngine backed by the configured langchaingo provider.
func NewWithConfig(config ChatConfig) (*ChatEngine, error) {
	config, err := withChatDefaults(config)
	if err != nil {
		return nil, err
	}

	var model llms.Model
	switch config.Provider {
	case "ollama":
		model, err = ollama.New(ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL))
	case "openai":
		opts := []openai.Option{openai.WithModel(config.Model), openai.WithToken(config.APIKey)}
		if config.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(config.BaseURL))
		}
		model, err = openai.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported chat provider %q", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return &ChatEngine{
		config: config,
		llm:    model,
	}, nil
}

// NewWithModel wraps an already constructed model.
func NewWithModel(config ChatConfig, model llms.Model) (*ChatEngine, error) {
	config, err := withChatDefaults(config)
	if err != nil {
		return nil, err
	}
	return &ChatEngine{config: config, llm: model}, nil
}

func withChatDefaults(config ChatConfig) (ChatConfig, error) {
	if config.Provider == "" {
		config.Provider = "ollama"
	}
	if config.Model == "" {
		config.Model = "mistral" // Default Ollama model
	}
	if config.Temperature < 0 || config.Temperature > 2 {
		return config, fmt.Errorf("temperature must be between 0 and 2")
	}
	if config.MaxTokens < 0 {
		return config, fmt.Errorf("max tokens cannot be negative")
	} else if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.SystemTemplate == "" {
		config.SystemTemplate = defaultSystemTemplate
	}
	if config.BaseURL == "" && config.Provider == "ollama" {
		config.BaseURL = "http://localhost:11434" // Default Ollama URL
	}
	return config, nil
}

func (ce *ChatEngine) messages(prompt string) []llms.MessageContent {
	return []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, ce.config.SystemTemplate),
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}
}

func (ce *ChatEngine) callOptions(extra ...llms.CallOption) []llms.CallOption {
	opts := []llms.CallOption{
		llms.WithMaxTokens(ce.config.MaxTokens),
		llms.WithTemperature(ce.config.Temperature),
	}
	return append(opts, extra...)
}

// Complete sends one prompt and returns the model's text.
func (ce *ChatEngine) Complete(ctx context.Context, prompt string) (string, error) {
	response, err := ce.llm.GenerateContent(ctx, ce.messages(prompt), ce.callOptions()...)
	if err != nil {
		return "", fmt.Errorf("chat error: %w", err)
	}

	if response == nil || len(response.Choices) == 0 || strings.TrimSpace(response.Choices[0].Content) == "" {
		return "", ErrEmptyResponse
	}

	return response.Choices[0].Content, nil
}

// Stream sends one prompt and delivers the answer in pieces as the model
// produces them. A failure is delivered as a final chunk carrying the error.
func (ce *ChatEngine) Stream(ctx context.Context, prompt string) (<-chan models.StreamChunk, error) {
	resultChan := make(chan models.StreamChunk)

	go func() {
		defer close(resultChan)

		send := func(c models.StreamChunk) error {
			select {
			case resultChan <- c:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		streamed := false
		response, err := ce.llm.GenerateContent(ctx, ce.messages(prompt), ce.callOptions(
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				streamed = true
				return send(models.StreamChunk{Text: string(chunk)})
			}),
		)...)
		if err != nil {
			send(models.StreamChunk{Err: err})
			return
		}

		// some providers ignore the streaming callback
		if !streamed {
			if response == nil || len(response.Choices) == 0 {
				send(models.StreamChunk{Err: ErrEmptyResponse})
				return
			}
			for _, choice := range response.Choices {
				if choice != nil && choice.Content != "" {
					send(models.StreamChunk{Text: choice.Content})
				}
			}
		}
	}()

	return resultChan, nil
}
