package report

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xhad/brightpath/internal/models"
)

const (
	SummaryLabel = "Summary"
	ScoreLabel   = "Match Score"
)

// ErrInvalidScore is returned when a score reply holds no integer in [0, 100].
var ErrInvalidScore = errors.New("invalid match score")

var integerPattern = regexp.MustCompile(`-?\d+`)

// ParseScore reads the first integer in a model reply.
func ParseScore(reply string) (int, error) {
	m := integerPattern.FindString(reply)
	if m == "" {
		return 0, fmt.Errorf("%w: no number in %q", ErrInvalidScore, truncate(reply, 80))
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidScore, err)
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("%w: %d is outside 0-100", ErrInvalidScore, n)
	}
	return n, nil
}

// Table returns the rows shown to the user: one per attribute answer, then
// the summary and the score.
func Table(r models.Report) []models.AttributeAnswer {
	rows := make([]models.AttributeAnswer, 0, len(r.Rows)+2)
	rows = append(rows, r.Rows...)
	rows = append(rows,
		models.AttributeAnswer{Label: SummaryLabel, Text: r.Summary},
		models.AttributeAnswer{Label: ScoreLabel, Text: strconv.Itoa(r.Score)},
	)
	return rows
}

// Render formats a report the way it is written to disk.
func Render(r models.Report) string {
	if r.Kind == models.ReportComprehensive {
		body := r.Body
		if !strings.HasSuffix(body, "\n") {
			body += "\n"
		}
		return body
	}

	var sb strings.Builder
	sb.WriteString("Attribute\tValue\n")
	for _, row := range Table(r) {
		sb.WriteString(flatten(row.Label))
		sb.WriteByte('\t')
		sb.WriteString(flatten(row.Text))
		sb.WriteByte('\n')
	}
	return sb.String()
}

// flatten keeps a value on one TSV cell.
func flatten(s string) string {
	s = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
