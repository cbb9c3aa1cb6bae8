package server

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/brightpath/internal/models"
	"github.com/xhad/brightpath/internal/testutil"
	"github.com/xhad/brightpath/pkg/config"
	"github.com/xhad/brightpath/pkg/extractor"
	"github.com/xhad/brightpath/pkg/pipeline"
)

func respond(prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, "single integer"):
		return "64", nil
	case strings.Contains(prompt, "summarize how suitable"):
		return "Reasonable fit.", nil
	default:
		return "BSc Computer Science", nil
	}
}

func newTestServer(t *testing.T) (*Server, *testutil.FakeCompleter) {
	t.Helper()
	cfg := config.Default()
	cfg.Analyzer.Attributes = []string{"Education", "Technical Skills"}
	cfg.Processor.ChunkSize = 200
	cfg.Processor.ChunkOverlap = 20
	cfg.Report.StorageDir = t.TempDir()

	completer := &testutil.FakeCompleter{Respond: respond}
	embedder := &testutil.FakeEmbedder{Dim: 64}

	factory := func(opts RunOptions) (*pipeline.Pipeline, error) {
		runCfg := *cfg
		runCfg.Report.Output = opts.Output
		return pipeline.NewWithConfig(pipeline.PipelineConfig{
			Config:     &runCfg,
			Completer:  completer,
			Embedder:   embedder,
			Extractor:  extractor.New(),
			OnStage:    opts.OnStage,
			OnProgress: opts.OnProgress,
		})
	}
	return New(cfg, factory), completer
}

func multipartBody(t *testing.T, files map[string]string, values map[string][]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for field, content := range files {
		fw, err := mw.CreateFormFile(field, field+".txt")
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	for field, vs := range values {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(field, v))
		}
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestIndexForm(t *testing.T) {
	s, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `name="resume"`)
	assert.Contains(t, body, `name="role"`)
	assert.Contains(t, body, `value="Education" checked`)
	assert.Contains(t, body, `value="Technical Skills" checked`)
	assert.Contains(t, body, "Generate Report")
}

func TestAnalyzeMissingUploads(t *testing.T) {
	s, completer := newTestServer(t)
	body, contentType := multipartBody(t, map[string]string{"resume": testutil.SampleResume}, nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "please upload both")
	assert.Equal(t, 0, completer.Calls())
}

func TestAnalyzeRendersTable(t *testing.T) {
	s, completer := newTestServer(t)
	body, contentType := multipartBody(t,
		map[string]string{"resume": testutil.SampleResume, "role": testutil.SampleRole},
		map[string][]string{"attribute": {"Education"}, "mode": {"attributes"}},
	)

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	page := rec.Body.String()
	assert.Contains(t, page, "<td>Education</td><td>BSc Computer Science</td>")
	assert.Contains(t, page, "<td>Summary</td><td>Reasonable fit.</td>")
	assert.Contains(t, page, "<td>Match Score</td><td>64</td>")
	assert.Contains(t, page, `<a href="data:application/octet-stream;base64,`)
	assert.Contains(t, page, `download="report.tsv"`)
	// only the ticked attribute stays checked
	assert.Contains(t, page, `value="Technical Skills">`)
	assert.Equal(t, 3, completer.Calls())
}

func TestAnalyzeWithoutAttributes(t *testing.T) {
	s, completer := newTestServer(t)
	body, contentType := multipartBody(t,
		map[string]string{"resume": testutil.SampleResume, "role": testutil.SampleRole},
		nil,
	)

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<td>Education</td>")
	assert.Contains(t, rec.Body.String(), "<td>Match Score</td>")
	assert.Equal(t, 2, completer.Calls())
}

func TestWebSocketProgress(t *testing.T) {
	s, _ := newTestServer(t)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	// missing role is a warning
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "analyze",
		"data": map[string]interface{}{
			"resume": map[string]interface{}{"name": "resume.txt", "data": []byte(testutil.SampleResume)},
		},
	}))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "warning", msg.Type)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"type": "analyze",
		"data": map[string]interface{}{
			"resume": map[string]interface{}{"name": "resume.txt", "data": []byte(testutil.SampleResume)},
			"role":   map[string]interface{}{"name": "role.txt", "data": []byte(testutil.SampleRole)},
		},
	}))

	var types []string
	var progress []string
	for {
		var m Message
		require.NoError(t, conn.ReadJSON(&m))
		types = append(types, m.Type)
		if m.Type == "progress" {
			progress = append(progress, m.Content)
		}
		if m.Type == "result" {
			assert.Contains(t, m.Content, "Match Score\t64")
			break
		}
		require.NotEqual(t, "error", m.Type, m.Content)
	}
	assert.Equal(t, []string{"Answered 1/2: Education", "Answered 2/2: Technical Skills"}, progress)
	assert.Contains(t, types, "status")

	// follow-up over the same index
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": "ask", "content": "Which degree?"}))
	var answer strings.Builder
	for {
		var m Message
		require.NoError(t, conn.ReadJSON(&m))
		if m.Type == "done" {
			break
		}
		require.Equal(t, "stream", m.Type, m.Content)
		answer.WriteString(m.Content)
	}
	assert.Equal(t, "BSc Computer Science", answer.String())
}

func TestListenAndServeStops(t *testing.T) {
	s, _ := newTestServer(t)
	s.config.Server.Addr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestRunUsesPerRequestOutput(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.run(context.Background(), "attributes", pipeline.Input{
		Resume:     nil,
		Attributes: []string{},
	}, nil, nil)
	assert.ErrorIs(t, err, pipeline.ErrMissingUploads)
	assert.Nil(t, res)

	assert.Equal(t, "report.tsv", filepath.Base(s.config.Report.Output))
}

func TestRunRemovesReportFiles(t *testing.T) {
	s, _ := newTestServer(t)
	for i := 0; i < 3; i++ {
		res, err := s.run(context.Background(), "attributes", pipeline.Input{
			Resume:     &models.Document{Name: "resume.txt", Data: []byte(testutil.SampleResume)},
			Role:       &models.Document{Name: "role.txt", Data: []byte(testutil.SampleRole)},
			Attributes: []string{"Education"},
		}, nil, nil)
		require.NoError(t, err)
		assert.Contains(t, res.DownloadLink, "data:application/octet-stream;base64,")
		assert.Contains(t, res.Content, "Match Score\t64")
		res.Close()

		_, err = os.Stat(res.Path)
		assert.True(t, os.IsNotExist(err), res.Path)
	}

	entries, err := os.ReadDir(filepath.Join(s.config.Report.StorageDir, "reports"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}
