package retriever_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/brightpath/internal/models"
	"github.com/xhad/brightpath/internal/testutil"
	"github.com/xhad/brightpath/pkg/retriever"
	"github.com/xhad/brightpath/pkg/store"
)

func chunks(texts ...string) []models.Chunk {
	out := make([]models.Chunk, len(texts))
	for i, t := range texts {
		out[i] = models.Chunk{ID: t, Source: models.SourceResume, Index: i, Text: t}
	}
	return out
}

func TestIndexAndRetrieve(t *testing.T) {
	ctx := context.Background()
	emb := &testutil.FakeEmbedder{Dim: 128}
	s := store.NewMemoryStore()

	var progress [][2]int
	r, err := retriever.NewWithConfig(retriever.RetrieverConfig{
		Embedder:  emb,
		Store:     s,
		BatchSize: 2,
		OnProgress: func(done, total int) {
			progress = append(progress, [2]int{done, total})
		},
	})
	require.NoError(t, err)

	input := chunks(
		"education bachelor computer science",
		"kubernetes clusters in production",
		"certifications none",
	)
	require.NoError(t, r.Index(ctx, input))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 2, emb.Calls())
	assert.Equal(t, [][2]int{{2, 3}, {3, 3}}, progress)

	// caller's slice is left untouched
	assert.Nil(t, input[0].Embedding)

	results, err := r.Retrieve(ctx, "education", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "education bachelor computer science", results[0].Text)
}

func TestRetrieveBeforeIndex(t *testing.T) {
	r, err := retriever.NewWithConfig(retriever.RetrieverConfig{
		Embedder: &testutil.FakeEmbedder{},
		Store:    store.NewMemoryStore(),
	})
	require.NoError(t, err)

	_, err = r.Retrieve(context.Background(), "anything", 3)
	assert.ErrorIs(t, err, retriever.ErrNoIndex)
}

func TestIndexEmbedError(t *testing.T) {
	r, err := retriever.NewWithConfig(retriever.RetrieverConfig{
		Embedder: &testutil.FakeEmbedder{Err: errors.New("quota")},
		Store:    store.NewMemoryStore(),
	})
	require.NoError(t, err)

	err = r.Index(context.Background(), chunks("a"))
	assert.ErrorContains(t, err, "quota")
}

func TestNewWithConfigRequiresDeps(t *testing.T) {
	_, err := retriever.NewWithConfig(retriever.RetrieverConfig{Store: store.NewMemoryStore()})
	assert.Error(t, err)
	_, err = retriever.NewWithConfig(retriever.RetrieverConfig{Embedder: &testutil.FakeEmbedder{}})
	assert.Error(t, err)
}
