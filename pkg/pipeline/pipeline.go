// Package pipeline runs one resume/role analysis end to end: extract both
// uploads, index them, query the model and write the report file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/xhad/brightpath/internal/models"
	"github.com/xhad/brightpath/internal/types"
	"github.com/xhad/brightpath/pkg/analyzer"
	"github.com/xhad/brightpath/pkg/config"
	"github.com/xhad/brightpath/pkg/processor"
	"github.com/xhad/brightpath/pkg/report"
	"github.com/xhad/brightpath/pkg/retriever"
	"github.com/xhad/brightpath/pkg/store"
)

// ErrMissingUploads is returned before any model call when the resume or the role is missing.
var ErrMissingUploads = errors.New("please upload both the role information and the resume to generate a report")

// Stages reported through OnStage.
const (
	StageFetching   = "fetching role"
	StageExtracting = "extracting text"
	StageIndexing   = "indexing"
	StageAnalyzing  = "analyzing"
	StageReporting  = "writing report"
)

type Input struct {
	Resume *models.Document
	Role   *models.Document
	// RoleURL is fetched when Role is empty.
	RoleURL string
	// Attributes to query. Nil means the configured defaults; an empty,
	// non-nil slice means none.
	Attributes []string
}

// RoleFetcher downloads a job posting as a role document.
type RoleFetcher interface {
	Fetch(ctx context.Context, url string) (models.Document, error)
}

// StoreFactory opens a fresh vector store for one run.
type StoreFactory func(ctx context.Context, runID string) (types.VectorStore, error)

type PipelineConfig struct {
	Config    *config.Config
	Completer types.Completer
	Embedder  types.Embedder
	Extractor types.Extractor
	Fetcher   RoleFetcher
	Uploader  report.Uploader
	NewStore  StoreFactory

	OnStage    func(stage string)
	OnProgress types.ProgressFunc
}

type Pipeline struct {
	config    PipelineConfig
	processor *processor.Processor
	cache     *store.IndexCache
}

// Result is a finished run. Close releases the run's index.
type Result struct {
	Report       models.Report
	Path         string
	Content      string
	DownloadLink string
	// Location is where the report was uploaded, if an uploader is configured.
	Location string
	Warnings []string

	analyzer *analyzer.Analyzer
	store    types.VectorStore
}

// Analyzer answers follow-up questions against the run's index.
func (r *Result) Analyzer() *analyzer.Analyzer {
	return r.analyzer
}

func (r *Result) Close() {
	if r.store == nil {
		return
	}
	if err := r.store.Reset(context.Background()); err != nil {
		log.Printf("failed to clean up report %s: %v", r.Report.ID, err)
	}
	r.store.Close()
	r.store = nil
}

func NewWithConfig(cfg PipelineConfig) (*Pipeline, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.Completer == nil || cfg.Embedder == nil {
		return nil, fmt.Errorf("completer and embedder are required")
	}
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if cfg.NewStore == nil {
		cfg.NewStore = DefaultStoreFactory(cfg.Config.Database)
	}

	proc, err := processor.NewWithConfig(processor.ProcessorConfig{
		ChunkSize:           cfg.Config.Processor.ChunkSize,
		ChunkOverlap:        cfg.Config.Processor.ChunkOverlap,
		NormalizeWhitespace: cfg.Config.Processor.NormalizeWhitespace,
	})
	if err != nil {
		return nil, fmt.Errorf("processor: %w", err)
	}

	return &Pipeline{
		config:    cfg,
		processor: proc,
		cache:     store.NewIndexCache(cfg.Config.Report.StorageDir),
	}, nil
}

// DefaultStoreFactory uses pgvector when a database is configured and an in-memory index otherwise.
func DefaultStoreFactory(db config.DatabaseConfig) StoreFactory {
	return func(ctx context.Context, runID string) (types.VectorStore, error) {
		if db.URL == "" {
			return store.NewMemoryStore(), nil
		}
		return store.NewWithConfig(ctx, store.VectorStoreConfig{
			ConnString: db.URL,
			TableName:  db.TableName,
			VectorDim:  db.VectorDim,
			BatchSize:  db.BatchSize,
			RunID:      runID,
		})
	}
}

func (p *Pipeline) stage(s string) {
	if p.config.OnStage != nil {
		p.config.OnStage(s)
	}
}

// Analyze runs the attribute pipeline and writes a TSV report.
func (p *Pipeline) Analyze(ctx context.Context, in Input) (*Result, error) {
	chunks, err := p.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	vs, err := p.config.NewStore(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	res, err := p.analyze(ctx, in, chunks, vs)
	if err != nil {
		// pgvector rows belong to this run only
		if rerr := vs.Reset(context.WithoutCancel(ctx)); rerr != nil {
			log.Printf("failed to clean up run %s: %v", runID, rerr)
		}
		vs.Close()
		return nil, err
	}
	return res, nil
}

func (p *Pipeline) analyze(ctx context.Context, in Input, chunks []models.Chunk, vs types.VectorStore) (*Result, error) {
	p.stage(StageIndexing)
	r, err := p.index(ctx, vs, chunks)
	if err != nil {
		return nil, err
	}

	an, err := p.newAnalyzer(r)
	if err != nil {
		return nil, err
	}

	attributes := in.Attributes
	if attributes == nil {
		attributes = p.config.Config.Analyzer.Attributes
	}

	p.stage(StageAnalyzing)
	rep, err := an.Report(ctx, attributes)
	if err != nil {
		return nil, err
	}

	return p.finish(ctx, rep, an, vs, p.outputPath(models.ReportAttributes))
}

// GenerateReport runs the single-query comprehensive pipeline over the cached index.
func (p *Pipeline) GenerateReport(ctx context.Context, in Input) (*Result, error) {
	chunks, err := p.prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	key, err := p.cacheKey(chunks)
	if err != nil {
		return nil, err
	}

	idx, found, err := p.cache.Load(key)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}

	var r *retriever.Retriever
	if found {
		log.Printf("Using cached index %s (%d chunks)", key, idx.Len())
		r, err = retriever.NewWithConfig(retriever.RetrieverConfig{
			Embedder:  p.config.Embedder,
			Store:     idx,
			BatchSize: p.config.Config.Retrieval.EmbedBatchSize,
		})
		if err != nil {
			return nil, err
		}
		r.MarkIndexed(idx.Len())
	} else {
		p.stage(StageIndexing)
		idx = store.NewMemoryStore()
		r, err = p.index(ctx, idx, chunks)
		if err != nil {
			return nil, err
		}
		if err := p.cache.Save(key, idx); err != nil {
			return nil, fmt.Errorf("save index: %w", err)
		}
	}

	an, err := p.newAnalyzer(r)
	if err != nil {
		return nil, err
	}

	p.stage(StageAnalyzing)
	rep, err := an.Comprehensive(ctx)
	if err != nil {
		return nil, err
	}

	return p.finish(ctx, rep, an, idx, p.outputPath(models.ReportComprehensive))
}

// prepare validates the uploads, resolves the role and splits both documents.
func (p *Pipeline) prepare(ctx context.Context, in Input) ([]models.Chunk, error) {
	if in.Resume.Empty() || (in.Role.Empty() && strings.TrimSpace(in.RoleURL) == "") {
		return nil, ErrMissingUploads
	}

	resume := *in.Resume
	resume.ID, resume.Source = string(models.SourceResume), models.SourceResume

	var role models.Document
	if !in.Role.Empty() {
		role = *in.Role
	} else {
		if p.config.Fetcher == nil {
			return nil, fmt.Errorf("fetching a role from a URL is not configured")
		}
		p.stage(StageFetching)
		fetched, err := p.config.Fetcher.Fetch(ctx, in.RoleURL)
		if err != nil {
			return nil, fmt.Errorf("fetch role: %w", err)
		}
		role = fetched
	}
	role.ID, role.Source = string(models.SourceRole), models.SourceRole

	p.stage(StageExtracting)
	docs := make([]models.ExtractedDocument, 0, 2)
	for _, doc := range []models.Document{resume, role} {
		text, err := p.config.Extractor.Extract(doc)
		if err != nil {
			return nil, fmt.Errorf("extract %s: %w", doc.Source, err)
		}
		docs = append(docs, models.ExtractedDocument{Document: doc, Text: text})
	}

	chunks, err := p.processor.Process(docs)
	if err != nil {
		return nil, fmt.Errorf("split documents: %w", err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no text found in the uploaded documents")
	}
	return chunks, nil
}

func (p *Pipeline) index(ctx context.Context, vs types.VectorStore, chunks []models.Chunk) (*retriever.Retriever, error) {
	r, err := retriever.NewWithConfig(retriever.RetrieverConfig{
		Embedder:  p.config.Embedder,
		Store:     vs,
		BatchSize: p.config.Config.Retrieval.EmbedBatchSize,
	})
	if err != nil {
		return nil, err
	}
	if err := r.Index(ctx, chunks); err != nil {
		return nil, fmt.Errorf("index documents: %w", err)
	}
	return r, nil
}

func (p *Pipeline) newAnalyzer(r types.Retriever) (*analyzer.Analyzer, error) {
	return analyzer.NewWithConfig(analyzer.AnalyzerConfig{
		Completer:      p.config.Completer,
		Retriever:      r,
		TopK:           p.config.Config.Retrieval.TopK,
		MaxAnswerWords: p.config.Config.Analyzer.MaxAnswerWords,
		OnProgress:     p.config.OnProgress,
	})
}

func (p *Pipeline) cacheKey(chunks []models.Chunk) (string, error) {
	cfg := p.config.Config
	params := fmt.Sprintf("chunk=%d/%d;normalize=%t;embed=%s/%s",
		cfg.Processor.ChunkSize, cfg.Processor.ChunkOverlap, cfg.Processor.NormalizeWhitespace,
		cfg.LLM.Provider, cfg.LLM.EmbeddingModel)

	texts := make([][]byte, len(chunks))
	for i, c := range chunks {
		texts[i] = []byte(string(c.Source) + "\x00" + c.Text)
	}
	return p.cache.Key(params, texts...)
}

func (p *Pipeline) outputPath(kind models.ReportKind) string {
	out := p.config.Config.Report.Output
	if out == "" {
		out = "report.tsv"
	}
	if kind == models.ReportComprehensive {
		return strings.TrimSuffix(out, filepath.Ext(out)) + ".txt"
	}
	return out
}

func (p *Pipeline) finish(ctx context.Context, rep models.Report, an *analyzer.Analyzer, vs types.VectorStore, path string) (*Result, error) {
	p.stage(StageReporting)
	if err := report.WriteFile(path, rep); err != nil {
		return nil, err
	}
	content, err := report.ReadFile(path)
	if err != nil {
		return nil, err
	}
	link, err := report.DownloadLink(path, "Download Report")
	if err != nil {
		return nil, err
	}

	res := &Result{
		Report:       rep,
		Path:         path,
		Content:      content,
		DownloadLink: link,
		analyzer:     an,
		store:        vs,
	}

	if p.config.Uploader != nil {
		loc, err := report.Publish(ctx, p.config.Uploader, p.config.Config.Export.S3.Prefix, rep.ID, path)
		if err != nil {
			log.Printf("Report upload failed: %v", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("report was saved locally but not uploaded: %v", err))
		} else {
			res.Location = loc
		}
	}

	return res, nil
}
