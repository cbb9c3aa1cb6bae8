package analyzer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xhad/brightpath/internal/models"
	"github.com/xhad/brightpath/internal/types"
	"github.com/xhad/brightpath/pkg/report"
)

type AnalyzerConfig struct {
	Completer      types.Completer
	Retriever      types.Retriever
	TopK           int
	MaxAnswerWords int
	// OnProgress is called after each attribute is answered.
	OnProgress types.ProgressFunc
}

// Analyzer asks the model about the indexed resume and role.
type Analyzer struct {
	config AnalyzerConfig
}

func NewWithConfig(config AnalyzerConfig) (*Analyzer, error) {
	if config.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if config.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if config.TopK <= 0 {
		config.TopK = 4
	}
	if config.MaxAnswerWords <= 0 {
		config.MaxAnswerWords = 40
	}
	return &Analyzer{config: config}, nil
}

// Answer retrieves context for one attribute and asks for a short answer.
func (a *Analyzer) Answer(ctx context.Context, attribute string) (models.AttributeAnswer, error) {
	chunks, err := a.config.Retriever.Retrieve(ctx, Question(attribute), a.config.TopK)
	if err != nil {
		return models.AttributeAnswer{}, fmt.Errorf("retrieve %q: %w", attribute, err)
	}

	reply, err := a.config.Completer.Complete(ctx, answerPrompt(attribute, chunks, a.config.MaxAnswerWords))
	if err != nil {
		return models.AttributeAnswer{}, fmt.Errorf("answer %q: %w", attribute, err)
	}

	return models.AttributeAnswer{
		Label: attribute,
		Text:  normalizeAnswer(reply, a.config.MaxAnswerWords),
	}, nil
}

// Attributes answers every attribute in order. The first failure stops the loop.
func (a *Analyzer) Attributes(ctx context.Context, attributes []string) ([]models.AttributeAnswer, error) {
	rows := make([]models.AttributeAnswer, 0, len(attributes))
	for i, attr := range attributes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row, err := a.Answer(ctx, attr)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)

		if a.config.OnProgress != nil {
			a.config.OnProgress(i+1, len(attributes), attr)
		}
	}
	return rows, nil
}

func (a *Analyzer) roleContext(ctx context.Context) ([]models.ScoredChunk, error) {
	chunks, err := a.config.Retriever.Retrieve(ctx, RoleQuery, a.config.TopK)
	if err != nil {
		return nil, fmt.Errorf("retrieve role requirements: %w", err)
	}
	return chunks, nil
}

// Summarize asks for a short suitability summary over the answered attributes.
func (a *Analyzer) Summarize(ctx context.Context, rows []models.AttributeAnswer) (string, error) {
	role, err := a.roleContext(ctx)
	if err != nil {
		return "", err
	}
	reply, err := a.config.Completer.Complete(ctx, summaryPrompt(rows, role))
	if err != nil {
		return "", fmt.Errorf("summary: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// Score asks for a 0-100 match score under the fixed rubric.
func (a *Analyzer) Score(ctx context.Context, rows []models.AttributeAnswer, summary string) (int, error) {
	role, err := a.roleContext(ctx)
	if err != nil {
		return 0, err
	}
	reply, err := a.config.Completer.Complete(ctx, scorePrompt(rows, summary, role))
	if err != nil {
		return 0, fmt.Errorf("score: %w", err)
	}
	score, err := report.ParseScore(reply)
	if err != nil {
		return 0, fmt.Errorf("score: %w", err)
	}
	return score, nil
}

// Report runs the attribute loop, then the summary and score calls.
func (a *Analyzer) Report(ctx context.Context, attributes []string) (models.Report, error) {
	rows, err := a.Attributes(ctx, attributes)
	if err != nil {
		return models.Report{}, err
	}

	summary, err := a.Summarize(ctx, rows)
	if err != nil {
		return models.Report{}, err
	}

	score, err := a.Score(ctx, rows, summary)
	if err != nil {
		return models.Report{}, err
	}

	return models.Report{
		ID:        uuid.NewString(),
		Kind:      models.ReportAttributes,
		Rows:      rows,
		Summary:   summary,
		Score:     score,
		CreatedAt: time.Now(),
	}, nil
}

// Comprehensive issues the single multi-section report query.
func (a *Analyzer) Comprehensive(ctx context.Context) (models.Report, error) {
	chunks, err := a.config.Retriever.Retrieve(ctx, ComprehensiveQuery, a.config.TopK)
	if err != nil {
		return models.Report{}, fmt.Errorf("retrieve report context: %w", err)
	}

	body, err := a.config.Completer.Complete(ctx, comprehensivePrompt(chunks))
	if err != nil {
		return models.Report{}, fmt.Errorf("comprehensive report: %w", err)
	}

	return models.Report{
		ID:        uuid.NewString(),
		Kind:      models.ReportComprehensive,
		Body:      strings.TrimSpace(body),
		CreatedAt: time.Now(),
	}, nil
}

// Ask answers a free-form follow-up question about the candidate.
func (a *Analyzer) Ask(ctx context.Context, question string) (string, error) {
	prompt, err := a.followUp(ctx, question)
	if err != nil {
		return "", err
	}
	reply, err := a.config.Completer.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("follow-up: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// AskStream is Ask with the answer delivered in pieces when the completer
// can stream. Otherwise the whole answer arrives as one piece.
func (a *Analyzer) AskStream(ctx context.Context, question string) (<-chan models.StreamChunk, error) {
	s, ok := a.config.Completer.(types.Streamer)
	if !ok {
		answer, err := a.Ask(ctx, question)
		if err != nil {
			return nil, err
		}
		ch := make(chan models.StreamChunk, 1)
		ch <- models.StreamChunk{Text: answer}
		close(ch)
		return ch, nil
	}

	prompt, err := a.followUp(ctx, question)
	if err != nil {
		return nil, err
	}
	return s.Stream(ctx, prompt)
}

func (a *Analyzer) followUp(ctx context.Context, question string) (string, error) {
	chunks, err := a.config.Retriever.Retrieve(ctx, question, a.config.TopK)
	if err != nil {
		return "", fmt.Errorf("retrieve: %w", err)
	}
	return followUpPrompt(question, chunks), nil
}

func normalizeAnswer(reply string, maxWords int) string {
	s := strings.TrimSpace(reply)
	s = strings.TrimSpace(strings.Trim(s, "\"'`"))

	low := strings.ToLower(strings.TrimRight(s, ".! "))
	if s == "" || strings.HasPrefix(low, "not provided") || low == "n/a" {
		return NotProvided
	}

	words := strings.Fields(s)
	if len(words) > maxWords {
		words = words[:maxWords]
	}
	return strings.Join(words, " ")
}
