// Package server serves the upload form, renders reports and streams run
// progress over a websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/xhad/brightpath/internal/models"
	"github.com/xhad/brightpath/internal/types"
	"github.com/xhad/brightpath/pkg/config"
	"github.com/xhad/brightpath/pkg/extractor"
	"github.com/xhad/brightpath/pkg/pipeline"
	"github.com/xhad/brightpath/pkg/report"
)

const maxUploadBytes = 32 << 20

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RunOptions are the per-run settings a pipeline is built with.
type RunOptions struct {
	Output     string
	OnStage    func(stage string)
	OnProgress types.ProgressFunc
}

// PipelineFactory builds a pipeline for one run.
type PipelineFactory func(opts RunOptions) (*pipeline.Pipeline, error)

type Server struct {
	config  *config.Config
	factory PipelineFactory
	mux     *http.ServeMux
}

func New(cfg *config.Config, factory PipelineFactory) *Server {
	s := &Server{
		config:  cfg,
		factory: factory,
		mux:     http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("POST /analyze", s.handleAnalyze)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
	s.mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", s.config.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// run executes one analysis with its own output file. The file is removed once
// the run returns; the result already carries its content and download link.
func (s *Server) run(ctx context.Context, mode string, in pipeline.Input, onStage func(string), onProgress types.ProgressFunc) (*pipeline.Result, error) {
	dir := filepath.Join(s.config.Report.StorageDir, "reports", uuid.NewString())
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Printf("failed to remove %s: %v", dir, err)
		}
	}()

	name := filepath.Base(s.config.Report.Output)
	p, err := s.factory(RunOptions{
		Output:     filepath.Join(dir, name),
		OnStage:    onStage,
		OnProgress: onProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	if mode == "report" {
		return p.GenerateReport(ctx, in)
	}
	return p.Analyze(ctx, in)
}

type attributeOption struct {
	Name    string
	Checked bool
}

type resultView struct {
	ReportID     string                   `json:"report_id"`
	Kind         models.ReportKind        `json:"kind"`
	Rows         []models.AttributeAnswer `json:"rows,omitempty"`
	Score        int                      `json:"score"`
	Content      string                   `json:"content"`
	DownloadLink template.HTML            `json:"download_link"`
	Location     string                   `json:"location,omitempty"`
	Warnings     []string                 `json:"warnings,omitempty"`
}

func newResultView(res *pipeline.Result) *resultView {
	v := &resultView{
		ReportID: res.Report.ID,
		Kind:     res.Report.Kind,
		Score:    res.Report.Score,
		Content:  res.Content,
		// built by report.DownloadLink with escaped attributes
		DownloadLink: template.HTML(res.DownloadLink),
		Location:     res.Location,
		Warnings:     res.Warnings,
	}
	if res.Report.Kind == models.ReportAttributes {
		v.Rows = report.Table(res.Report)
	}
	return v
}

type pageData struct {
	Attributes []attributeOption
	Mode       string
	RoleURL    string
	Warning    string
	Error      string
	Result     *resultView
}

func (s *Server) page(selected []string, mode, roleURL string) pageData {
	checked := make(map[string]bool, len(selected))
	for _, a := range selected {
		checked[a] = true
	}
	opts := make([]attributeOption, 0, len(s.config.Analyzer.Attributes))
	for _, a := range s.config.Analyzer.Attributes {
		opts = append(opts, attributeOption{Name: a, Checked: checked[a]})
	}
	return pageData{Attributes: opts, Mode: mode, RoleURL: roleURL}
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, data); err != nil {
		log.Printf("Error rendering page: %v", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, s.page(s.config.Analyzer.Attributes, "attributes", ""))
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		data := s.page(s.config.Analyzer.Attributes, "attributes", "")
		data.Error = fmt.Sprintf("Could not read the upload: %v", err)
		s.render(w, http.StatusBadRequest, data)
		return
	}

	// no checkbox ticked means no attributes
	attributes := r.MultipartForm.Value["attribute"]
	if attributes == nil {
		attributes = []string{}
	}
	mode := r.FormValue("mode")
	roleURL := r.FormValue("role_url")
	data := s.page(attributes, mode, roleURL)

	resume, err := formDocument(r, "resume")
	if err != nil {
		data.Error = err.Error()
		s.render(w, http.StatusBadRequest, data)
		return
	}
	role, err := formDocument(r, "role")
	if err != nil {
		data.Error = err.Error()
		s.render(w, http.StatusBadRequest, data)
		return
	}

	res, err := s.run(r.Context(), mode, pipeline.Input{
		Resume:     resume,
		Role:       role,
		RoleURL:    roleURL,
		Attributes: attributes,
	}, nil, nil)
	if err != nil {
		status, warning, msg := classify(err)
		log.Printf("Analysis failed: %v", err)
		data.Warning, data.Error = warning, msg
		s.render(w, status, data)
		return
	}
	defer res.Close()

	data.Result = newResultView(res)
	s.render(w, http.StatusOK, data)
}

// classify maps a run error to a status and a warning or error message.
func classify(err error) (status int, warning, message string) {
	switch {
	case errors.Is(err, pipeline.ErrMissingUploads):
		return http.StatusBadRequest, err.Error(), ""
	case errors.Is(err, extractor.ErrUnreadable):
		return http.StatusUnprocessableEntity, "", err.Error()
	default:
		return http.StatusBadGateway, "", fmt.Sprintf("Error occurred while generating the report: %v", err)
	}
}

func formDocument(r *http.Request, field string) (*models.Document, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read %s upload: %w", field, err)
	}
	defer file.Close()
	return readUpload(file, header)
}

func readUpload(file multipart.File, header *multipart.FileHeader) (*models.Document, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %w", header.Filename, err)
	}
	return &models.Document{
		Name: header.Filename,
		Kind: extractor.DetectKind(header.Filename, data),
		Data: data,
	}, nil
}

// Message is the websocket envelope in both directions.
type Message struct {
	Type    string      `json:"type"`
	Content string      `json:"content"`
	Data    interface{} `json:"data,omitempty"`
}

type upload struct {
	Name string `json:"name"`
	Data []byte `json:"data"`
}

// analyzeRequest is the payload of an "analyze" message. A missing attributes
// field means the configured defaults.
type analyzeRequest struct {
	Mode       string    `json:"mode"`
	Resume     *upload   `json:"resume"`
	Role       *upload   `json:"role"`
	RoleURL    string    `json:"role_url"`
	Attributes *[]string `json:"attributes"`
}

type inbound struct {
	Type    string         `json:"type"`
	Content string         `json:"content"`
	Data    analyzeRequest `json:"data"`
}

type progressData struct {
	Done      int    `json:"done"`
	Total     int    `json:"total"`
	Attribute string `json:"attribute"`
}

type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(msgType, content string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.WriteJSON(Message{Type: msgType, Content: content, Data: data}); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()
	c := &wsConn{conn: conn}

	// the last report stays open for follow-up questions
	var last *pipeline.Result
	defer func() {
		if last != nil {
			last.Close()
		}
	}()

	for {
		var msg inbound
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Error reading message: %v", err)
			}
			return
		}

		switch msg.Type {
		case "analyze":
			res := s.handleAnalyzeMessage(r.Context(), c, msg.Data)
			if res != nil {
				if last != nil {
					last.Close()
				}
				last = res
			}
		case "ask":
			s.handleAsk(r.Context(), c, last, msg.Content)
		default:
			c.send("error", fmt.Sprintf("unknown message type %q", msg.Type), nil)
		}
	}
}

func (s *Server) handleAnalyzeMessage(ctx context.Context, c *wsConn, req analyzeRequest) *pipeline.Result {
	in := pipeline.Input{RoleURL: req.RoleURL}
	if req.Resume != nil {
		in.Resume = &models.Document{Name: req.Resume.Name, Kind: extractor.DetectKind(req.Resume.Name, req.Resume.Data), Data: req.Resume.Data}
	}
	if req.Role != nil {
		in.Role = &models.Document{Name: req.Role.Name, Kind: extractor.DetectKind(req.Role.Name, req.Role.Data), Data: req.Role.Data}
	}
	if req.Attributes != nil {
		in.Attributes = append([]string{}, (*req.Attributes)...)
	}

	res, err := s.run(ctx, req.Mode, in,
		func(stage string) {
			c.send("status", stage, nil)
		},
		func(done, total int, attribute string) {
			c.send("progress", fmt.Sprintf("Answered %d/%d: %s", done, total, attribute),
				progressData{Done: done, Total: total, Attribute: attribute})
		},
	)
	if err != nil {
		_, warning, msg := classify(err)
		if warning != "" {
			c.send("warning", warning, nil)
		} else {
			log.Printf("Analysis failed: %v", err)
			c.send("error", msg, nil)
		}
		return nil
	}

	for _, w := range res.Warnings {
		c.send("warning", w, nil)
	}
	c.send("result", res.Content, newResultView(res))
	return res
}

func (s *Server) handleAsk(ctx context.Context, c *wsConn, last *pipeline.Result, question string) {
	if last == nil {
		c.send("warning", "Generate a report before asking follow-up questions.", nil)
		return
	}

	stream, err := last.Analyzer().AskStream(ctx, question)
	if err != nil {
		c.send("error", fmt.Sprintf("Error: %v", err), nil)
		return
	}
	for chunk := range stream {
		if chunk.Err != nil {
			c.send("error", fmt.Sprintf("Error: %v", chunk.Err), nil)
			return
		}
		c.send("stream", chunk.Text, nil)
	}
	c.send("done", "", nil)
}
