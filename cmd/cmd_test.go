package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/brightpath/internal/models"
	"github.com/xhad/brightpath/internal/testutil"
	"github.com/xhad/brightpath/pkg/config"
	"github.com/xhad/brightpath/pkg/pipeline"
)

func TestSplitAttributes(t *testing.T) {
	assert.Equal(t, []string{"Education", "Technical Skills"}, splitAttributes(" Education, Technical Skills ,"))
	assert.Equal(t, []string{}, splitAttributes(""))
}

func TestReadDocument(t *testing.T) {
	doc, err := readDocument("")
	require.NoError(t, err)
	assert.Nil(t, doc)

	path := filepath.Join(t.TempDir(), "resume.pdf")
	require.NoError(t, os.WriteFile(path, testutil.MinimalPDF("Jane Doe"), 0o644))
	doc, err = readDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "resume.pdf", doc.Name)
	assert.Equal(t, models.KindPDF, doc.Kind)

	_, err = readDocument(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestRunRejectsUnknownMode(t *testing.T) {
	err := run(context.Background(), config.Default(), Options{Mode: "pdf"})
	assert.ErrorContains(t, err, "unknown mode")
}

func TestPrintReport(t *testing.T) {
	color.NoColor = true

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Report.Output = filepath.Join(dir, "report.tsv")
	cfg.Report.StorageDir = filepath.Join(dir, "storage")

	d := &deps{
		completer: &testutil.FakeCompleter{Respond: func(p string) (string, error) { return "70", nil }},
		embedder:  &testutil.FakeEmbedder{},
	}
	p, err := d.pipeline(cfg, nil, nil)
	require.NoError(t, err)

	res, err := p.Analyze(context.Background(), pipeline.Input{
		Resume:     &models.Document{Name: "resume.txt", Data: []byte(testutil.SampleResume)},
		Role:       &models.Document{Name: "role.txt", Data: []byte(testutil.SampleRole)},
		Attributes: []string{"Education"},
	})
	require.NoError(t, err)
	defer res.Close()

	var buf bytes.Buffer
	printReport(&buf, res)
	out := buf.String()
	assert.Contains(t, out, "Education    70")
	assert.Contains(t, out, "Match Score  70")
	assert.Contains(t, out, "Download: data:application/octet-stream;base64,")
}
