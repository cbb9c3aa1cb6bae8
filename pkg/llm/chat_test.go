package llm_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/xhad/brightpath/internal/models"
	"github.com/xhad/brightpath/pkg/llm"
)

// fakeModel is an llms.Model that replies with a fixed text.
type fakeModel struct {
	mu       sync.Mutex
	reply    string
	err      error
	messages [][]llms.MessageContent
	options  []llms.CallOptions
	// ignoreStream mimics providers that never call the streaming func
	ignoreStream bool
}

func (f *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}

	f.mu.Lock()
	f.messages = append(f.messages, messages)
	f.options = append(f.options, opts)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if opts.StreamingFunc != nil && !f.ignoreStream {
		for _, part := range strings.SplitAfter(f.reply, " ") {
			if err := opts.StreamingFunc(ctx, []byte(part)); err != nil {
				return nil, err
			}
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func collect(ch <-chan models.StreamChunk) (string, error) {
	var sb strings.Builder
	for c := range ch {
		if c.Err != nil {
			return sb.String(), c.Err
		}
		sb.WriteString(c.Text)
	}
	return sb.String(), nil
}

func TestNewWithConfig(t *testing.T) {
	engine, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       "testmodel",
		Temperature: 0.5,
		MaxTokens:   1000,
		BaseURL:     "http://localhost:1234",
	})
	assert.NoError(t, err)
	assert.NotNil(t, engine)

	_, err = llm.NewWithConfig(llm.ChatConfig{Temperature: 3})
	assert.Error(t, err)

	_, err = llm.NewWithConfig(llm.ChatConfig{MaxTokens: -1})
	assert.Error(t, err)

	_, err = llm.NewWithConfig(llm.ChatConfig{Provider: "nope"})
	assert.Error(t, err)
}

func TestComplete(t *testing.T) {
	model := &fakeModel{reply: "8 years"}
	engine, err := llm.NewWithModel(llm.ChatConfig{MaxTokens: 123, Temperature: 0.3}, model)
	require.NoError(t, err)

	answer, err := engine.Complete(context.Background(), "How many years?")
	require.NoError(t, err)
	assert.Equal(t, "8 years", answer)

	require.Len(t, model.messages, 1)
	msgs := model.messages[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	assert.Equal(t, "How many years?", msgs[1].Parts[0].(llms.TextContent).Text)

	assert.Equal(t, 123, model.options[0].MaxTokens)
	assert.InDelta(t, 0.3, model.options[0].Temperature, 1e-9)
}

func TestCompleteErrors(t *testing.T) {
	engine, err := llm.NewWithModel(llm.ChatConfig{}, &fakeModel{err: errors.New("boom")})
	require.NoError(t, err)
	_, err = engine.Complete(context.Background(), "q")
	assert.ErrorContains(t, err, "boom")

	engine, err = llm.NewWithModel(llm.ChatConfig{}, &fakeModel{reply: "  "})
	require.NoError(t, err)
	_, err = engine.Complete(context.Background(), "q")
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestStream(t *testing.T) {
	engine, err := llm.NewWithModel(llm.ChatConfig{}, &fakeModel{reply: "strong Go background"})
	require.NoError(t, err)

	ch, err := engine.Stream(context.Background(), "q")
	require.NoError(t, err)
	out, err := collect(ch)
	require.NoError(t, err)
	assert.Equal(t, "strong Go background", out)
}

func TestStreamWithoutCallbackSupport(t *testing.T) {
	engine, err := llm.NewWithModel(llm.ChatConfig{}, &fakeModel{reply: "whole answer", ignoreStream: true})
	require.NoError(t, err)

	ch, err := engine.Stream(context.Background(), "q")
	require.NoError(t, err)
	out, err := collect(ch)
	require.NoError(t, err)
	assert.Equal(t, "whole answer", out)
}

func TestStreamError(t *testing.T) {
	engine, err := llm.NewWithModel(llm.ChatConfig{}, &fakeModel{err: errors.New("offline")})
	require.NoError(t, err)

	ch, err := engine.Stream(context.Background(), "q")
	require.NoError(t, err)
	out, err := collect(ch)
	assert.ErrorContains(t, err, "offline")
	assert.Empty(t, out)
}

func TestStreamTextStartingWithError(t *testing.T) {
	reply := "Error: handling is one of her strengths"
	for _, ignore := range []bool{false, true} {
		engine, err := llm.NewWithModel(llm.ChatConfig{}, &fakeModel{reply: reply, ignoreStream: ignore})
		require.NoError(t, err)

		ch, err := engine.Stream(context.Background(), "q")
		require.NoError(t, err)
		out, err := collect(ch)
		require.NoError(t, err)
		assert.Equal(t, reply, out)
	}
}
