package store

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/brightpath/internal/models"
)

type VectorStoreConfig struct {
	ConnString string
	TableName  string
	VectorDim  int
	BatchSize  int
	// RunID scopes every row to one pipeline run.
	RunID string
}

// PGVectorStore keeps chunk embeddings in a Postgres table with the pgvector extension.
type PGVectorStore struct {
	config VectorStoreConfig
	pool   *pgxpool.Pool
	table  string
}

func NewWithConfig(ctx context.Context, config VectorStoreConfig) (*PGVectorStore, error) {
	if config.TableName == "" {
		config.TableName = "resume_chunks"
	}
	if config.VectorDim == 0 {
		config.VectorDim = 768
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if config.RunID == "" {
		return nil, fmt.Errorf("run id is required")
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PGVectorStore{
		config: config,
		pool:   pool,
		table:  pgx.Identifier{config.TableName}.Sanitize(),
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	_, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector")
	if err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT NOT NULL,
			run_id TEXT NOT NULL,
			source TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			start_offset INTEGER NOT NULL,
			end_offset INTEGER NOT NULL,
			content TEXT NOT NULL,
			embedding vector(%d),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (run_id, id)
		)`, vs.table, vs.config.VectorDim)

	_, err = vs.pool.Exec(ctx, createTable)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	// queries rank one run's rows exactly; no approximate embedding index
	dropANN := fmt.Sprintf("DROP INDEX IF EXISTS %s",
		pgx.Identifier{vs.config.TableName + "_embedding_idx"}.Sanitize())
	if _, err = vs.pool.Exec(ctx, dropANN); err != nil {
		return fmt.Errorf("failed to drop embedding index: %w", err)
	}

	createIndex := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (run_id)",
		pgx.Identifier{vs.config.TableName + "_run_id_idx"}.Sanitize(), vs.table)

	_, err = vs.pool.Exec(ctx, createIndex)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

func (vs *PGVectorStore) Add(ctx context.Context, chunks []models.Chunk) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, run_id, source, chunk_index, start_offset, end_offset, content, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, id) DO UPDATE SET
			content = EXCLUDED.content,
			embedding = EXCLUDED.embedding`,
		vs.table)

	for i := 0; i < len(chunks); i += vs.config.BatchSize {
		end := i + vs.config.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := &pgx.Batch{}
		for _, c := range chunks[i:end] {
			if len(c.Embedding) != vs.config.VectorDim {
				return fmt.Errorf("%w: chunk %s has %d, table has %d", ErrDimensionMismatch, c.ID, len(c.Embedding), vs.config.VectorDim)
			}
			batch.Queue(stmt,
				c.ID,
				vs.config.RunID,
				string(c.Source),
				c.Index,
				c.Start,
				c.End,
				sanitizeUTF8(c.Text),
				pgvector.NewVector(c.Embedding),
			)
		}

		if err := vs.pool.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
	}

	return nil
}

func (vs *PGVectorStore) Query(ctx context.Context, queryEmbedding []float32, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 {
		limit = 5
	}

	query := fmt.Sprintf(`
		SELECT id, source, chunk_index, start_offset, end_offset, content, 1 - (embedding <=> $1) AS score
		FROM %s
		WHERE run_id = $2
		ORDER BY embedding <=> $1
		LIMIT $3`,
		vs.table)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), vs.config.RunID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []models.ScoredChunk
	for rows.Next() {
		var (
			c      models.ScoredChunk
			source string
			score  float64
		)
		err := rows.Scan(
			&c.ID,
			&source,
			&c.Index,
			&c.Start,
			&c.End,
			&c.Text,
			&score,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		c.Source = models.Source(source)
		c.Score = float32(score)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return chunks, nil
}

// Reset deletes the rows written by this run.
func (vs *PGVectorStore) Reset(ctx context.Context) error {
	_, err := vs.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE run_id = $1", vs.table), vs.config.RunID)
	if err != nil {
		return fmt.Errorf("failed to delete run %s: %w", vs.config.RunID, err)
	}
	return nil
}

func (vs *PGVectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
