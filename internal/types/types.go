package types

import (
	"context"

	"github.com/xhad/brightpath/internal/models"
)

// Core interfaces
type VectorStore interface {
	Add(ctx context.Context, chunks []models.Chunk) error
	Query(ctx context.Context, embedding []float32, limit int) ([]models.ScoredChunk, error)
	Reset(ctx context.Context) error
	Close()
}

type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Completer is a hosted text-completion capability: prompt in, text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

type Extractor interface {
	Extract(doc models.Document) (string, error)
}

type Retriever interface {
	Retrieve(ctx context.Context, question string, limit int) ([]models.ScoredChunk, error)
}

// ProgressFunc is called after each attribute query finishes.
type ProgressFunc func(done, total int, attribute string)

// Streamer delivers a completion in pieces as the model produces them.
type Streamer interface {
	Stream(ctx context.Context, prompt string) (<-chan models.StreamChunk, error)
}
