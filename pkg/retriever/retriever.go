package retriever

import (
	"context"
	"errors"
	"fmt"

	"github.com/xhad/brightpath/internal/models"
	"github.com/xhad/brightpath/internal/types"
)

// ErrNoIndex is returned by Retrieve when nothing has been indexed yet.
var ErrNoIndex = errors.New("index is empty")

type RetrieverConfig struct {
	Embedder  types.Embedder
	Store     types.VectorStore
	BatchSize int
	// OnProgress is called after each embedding batch with the chunks done so far.
	OnProgress func(done, total int)
}

// Retriever embeds chunks into a vector store and answers similarity lookups against it.
type Retriever struct {
	config  RetrieverConfig
	indexed int
}

func NewWithConfig(config RetrieverConfig) (*Retriever, error) {
	if config.Embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if config.Store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 32
	}
	return &Retriever{config: config}, nil
}

// Index embeds chunks in batches and adds them to the store.
func (r *Retriever) Index(ctx context.Context, chunks []models.Chunk) error {
	for i := 0; i < len(chunks); i += r.config.BatchSize {
		end := min(i+r.config.BatchSize, len(chunks))
		batch := make([]models.Chunk, end-i)
		copy(batch, chunks[i:end])

		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		vecs, err := r.config.Embedder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks %d-%d: %w", i, end, err)
		}
		if len(vecs) != len(batch) {
			return fmt.Errorf("embed chunks %d-%d: got %d vectors", i, end, len(vecs))
		}
		for j := range batch {
			batch[j].Embedding = vecs[j]
		}

		if err := r.config.Store.Add(ctx, batch); err != nil {
			return fmt.Errorf("store chunks %d-%d: %w", i, end, err)
		}
		r.indexed += len(batch)

		if r.config.OnProgress != nil {
			r.config.OnProgress(end, len(chunks))
		}
	}
	return nil
}

// MarkIndexed records chunks that were already in the store, e.g. loaded from cache.
func (r *Retriever) MarkIndexed(n int) {
	r.indexed += n
}

func (r *Retriever) Retrieve(ctx context.Context, question string, limit int) ([]models.ScoredChunk, error) {
	if r.indexed == 0 {
		return nil, ErrNoIndex
	}

	vec, err := r.config.Embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	results, err := r.config.Store.Query(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	return results, nil
}
