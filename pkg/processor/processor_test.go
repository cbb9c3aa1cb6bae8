package processor_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/brightpath/internal/models"
	"github.com/xhad/brightpath/internal/testutil"
	"github.com/xhad/brightpath/pkg/processor"
)

func TestProcessor_Process(t *testing.T) {
	config := processor.ProcessorConfig{
		ChunkSize:           50,
		ChunkOverlap:        10,
		NormalizeWhitespace: true,
	}
	p, err := processor.NewWithConfig(config)
	require.NoError(t, err)

	documents := []models.ExtractedDocument{
		{Document: models.Document{ID: "resume", Source: models.SourceResume}, Text: testutil.SampleResume},
		{Document: models.Document{ID: "role", Source: models.SourceRole}, Text: "Role:   Backend    Engineer"},
	}

	chunks, err := p.Process(documents)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	last := chunks[len(chunks)-1]
	assert.Equal(t, models.SourceRole, last.Source)
	assert.Equal(t, "role_0", last.ID)
	assert.Equal(t, "Role: Backend Engineer", last.Text)

	assert.Equal(t, "resume_0", chunks[0].ID)
	assert.Equal(t, models.SourceResume, chunks[0].Source)
	assert.Contains(t, chunks[0].Text, "Jane Doe")
}

func TestProcessor_SplitCoversTextWithOverlap(t *testing.T) {
	texts := []string{
		"a",
		"short text",
		strings.Repeat("0123456789", 37),
		testutil.SampleResume + "\n\n" + testutil.SampleRole,
		strings.Repeat("résumé ", 41),
	}

	configs := []processor.ProcessorConfig{
		{ChunkSize: 1, ChunkOverlap: 0},
		{ChunkSize: 7, ChunkOverlap: 3},
		{ChunkSize: 10, ChunkOverlap: 0},
		{ChunkSize: 50, ChunkOverlap: 10},
		{ChunkSize: 100, ChunkOverlap: 99},
		{ChunkSize: 1000, ChunkOverlap: 200},
	}

	for _, cfg := range configs {
		p, err := processor.NewWithConfig(cfg)
		require.NoError(t, err)

		for _, text := range texts {
			runes := []rune(text)
			chunks := p.Split(text)
			require.NotEmpty(t, chunks)

			assert.Equal(t, 0, chunks[0].Start)
			assert.Equal(t, len(runes), chunks[len(chunks)-1].End)

			for i, c := range chunks {
				assert.Equal(t, i, c.Index)
				assert.Equal(t, string(runes[c.Start:c.End]), c.Text)
				assert.LessOrEqual(t, c.End-c.Start, cfg.ChunkSize)

				if i == 0 {
					continue
				}
				prev := chunks[i-1]
				assert.Equal(t, cfg.ChunkSize, prev.End-prev.Start, "only the last chunk may be short")
				assert.Equal(t, cfg.ChunkOverlap, prev.End-c.Start, "consecutive chunks overlap by the configured amount")

				overlap := []rune(prev.Text)[len([]rune(prev.Text))-cfg.ChunkOverlap:]
				assert.True(t, strings.HasPrefix(c.Text, string(overlap)))
			}

			// rebuild the original text from the chunks
			var rebuilt strings.Builder
			rebuilt.WriteString(chunks[0].Text)
			for _, c := range chunks[1:] {
				rebuilt.WriteString(string([]rune(c.Text)[cfg.ChunkOverlap:]))
			}
			assert.Equal(t, text, rebuilt.String())
		}
	}
}

func TestProcessor_SplitEmpty(t *testing.T) {
	p, err := processor.NewWithConfig(processor.ProcessorConfig{ChunkSize: 10, ChunkOverlap: 2})
	require.NoError(t, err)
	assert.Empty(t, p.Split(""))
}

func TestProcessor_InvalidConfig(t *testing.T) {
	tests := []processor.ProcessorConfig{
		{ChunkSize: -1},
		{ChunkSize: 10, ChunkOverlap: 10},
		{ChunkSize: 10, ChunkOverlap: -1},
	}

	for _, cfg := range tests {
		_, err := processor.NewWithConfig(cfg)
		assert.Error(t, err)
	}
}
