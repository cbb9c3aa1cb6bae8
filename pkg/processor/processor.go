package processor

import (
	"fmt"
	"strings"

	"github.com/xhad/brightpath/internal/models"
)

type ProcessorConfig struct {
	ChunkSize           int
	ChunkOverlap        int
	NormalizeWhitespace bool
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) (*Processor, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkSize < 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", config.ChunkSize, config.ChunkOverlap)
	}

	return &Processor{
		config: config,
	}, nil
}

// Process splits every document into chunks tagged with the document's source.
func (p *Processor) Process(docs []models.ExtractedDocument) ([]models.Chunk, error) {
	var chunks []models.Chunk

	for _, doc := range docs {
		text := doc.Text
		if p.config.NormalizeWhitespace {
			text = cleanText(text)
		}

		for _, chunk := range p.Split(text) {
			chunk.ID = fmt.Sprintf("%s_%d", doc.ID, chunk.Index)
			chunk.Source = doc.Source
			chunks = append(chunks, chunk)
		}
	}

	return chunks, nil
}

// Split cuts text into windows of ChunkSize runes. Window i starts at
// i*(ChunkSize-ChunkOverlap), so neighbours share exactly ChunkOverlap runes
// and the last window ends at the end of the text.
func (p *Processor) Split(text string) []models.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := p.config.ChunkSize - p.config.ChunkOverlap
	var chunks []models.Chunk

	for start := 0; ; start += step {
		end := start + p.config.ChunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, models.Chunk{
			Index: len(chunks),
			Start: start,
			End:   end,
			Text:  string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}

	return chunks
}

func cleanText(text string) string {
	// Replace runs of spaces within a line, keep paragraph breaks
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
