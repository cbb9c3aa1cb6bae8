package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/xhad/brightpath/internal/models"
)

const indexFile = "index.json"

// ErrDimensionMismatch is returned when embeddings of different sizes are mixed.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// MemoryStore is a brute-force cosine similarity index held in memory.
type MemoryStore struct {
	mu     sync.RWMutex
	dim    int
	chunks []models.Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Add(ctx context.Context, chunks []models.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("chunk %s has no embedding", c.ID)
		}
		if s.dim == 0 {
			s.dim = len(c.Embedding)
		}
		if len(c.Embedding) != s.dim {
			return fmt.Errorf("%w: chunk %s has %d, index has %d", ErrDimensionMismatch, c.ID, len(c.Embedding), s.dim)
		}
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

// Query returns up to limit chunks ordered by descending cosine similarity.
// A non-positive limit returns every chunk.
func (s *MemoryStore) Query(ctx context.Context, embedding []float32, limit int) ([]models.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 {
		return nil, nil
	}
	if len(embedding) != s.dim {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(embedding), s.dim)
	}

	scored := make([]models.ScoredChunk, len(s.chunks))
	for i, c := range s.chunks {
		scored[i] = models.ScoredChunk{Chunk: c, Score: cosine(embedding, c.Embedding)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if limit > 0 && limit < len(scored) {
		scored = scored[:limit]
	}
	return scored, nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.dim = 0
	return nil
}

func (s *MemoryStore) Close() {}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

type persistedIndex struct {
	Dim    int            `json:"dim"`
	Chunks []models.Chunk `json:"chunks"`
}

// Save writes the index into dir, creating it if needed.
func (s *MemoryStore) Save(dir string) error {
	s.mu.RLock()
	data, err := json.Marshal(persistedIndex{Dim: s.dim, Chunks: s.chunks})
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode index: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	// write then rename so a crashed save never leaves a half-written index
	tmp := filepath.Join(dir, indexFile+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, indexFile)); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	return nil
}

// LoadMemoryStore reads an index written by Save.
func LoadMemoryStore(dir string) (*MemoryStore, error) {
	data, err := os.ReadFile(filepath.Join(dir, indexFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read index: %w", err)
	}

	var idx persistedIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("failed to decode index: %w", err)
	}

	for _, c := range idx.Chunks {
		if len(c.Embedding) != idx.Dim {
			return nil, fmt.Errorf("%w: stored chunk %s", ErrDimensionMismatch, c.ID)
		}
	}

	return &MemoryStore{dim: idx.Dim, chunks: idx.Chunks}, nil
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
