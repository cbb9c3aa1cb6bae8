package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/brightpath/internal/models"
	"github.com/xhad/brightpath/internal/types"
	"github.com/xhad/brightpath/pkg/analyzer"
	"github.com/xhad/brightpath/pkg/config"
	"github.com/xhad/brightpath/pkg/extractor"
	"github.com/xhad/brightpath/pkg/llm"
	"github.com/xhad/brightpath/pkg/pipeline"
	"github.com/xhad/brightpath/pkg/report"
	"github.com/xhad/brightpath/pkg/scraper"
	"github.com/xhad/brightpath/pkg/storage"
	"github.com/xhad/brightpath/server"
)

// deps are shared by every run.
type deps struct {
	completer types.Completer
	embedder  types.Embedder
	fetcher   pipeline.RoleFetcher
	uploader  report.Uploader
}

func newDeps(ctx context.Context, cfg *config.Config) (*deps, error) {
	completer, embedder, err := llm.NewFromConfig(ctx, cfg.LLM, cfg.Retrieval.EmbedBatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model clients: %w", err)
	}

	fetcher, err := scraper.NewWithConfig(scraper.ScraperConfig{
		RateLimit:    cfg.Scraper.RateLimit,
		Timeout:      time.Duration(cfg.Scraper.Timeout) * time.Second,
		UserAgent:    cfg.Scraper.UserAgent,
		AllowPrivate: cfg.Scraper.AllowPrivate,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize scraper: %w", err)
	}

	d := &deps{completer: completer, embedder: embedder, fetcher: fetcher}

	if s3 := cfg.Export.S3; s3.Bucket != "" {
		up, err := storage.NewS3Uploader(ctx, storage.S3Config{
			Bucket:       s3.Bucket,
			Region:       s3.Region,
			Endpoint:     s3.Endpoint,
			AccessKey:    s3.AccessKey,
			SecretKey:    s3.SecretKey,
			UsePathStyle: s3.PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize report upload: %w", err)
		}
		d.uploader = up
	}

	return d, nil
}

func (d *deps) pipeline(cfg *config.Config, onStage func(string), onProgress types.ProgressFunc) (*pipeline.Pipeline, error) {
	return pipeline.NewWithConfig(pipeline.PipelineConfig{
		Config:     cfg,
		Completer:  d.completer,
		Embedder:   d.embedder,
		Extractor:  extractor.New(),
		Fetcher:    d.fetcher,
		Uploader:   d.uploader,
		OnStage:    onStage,
		OnProgress: onProgress,
	})
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("attributes"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// spin keeps a spinner moving until the returned func is called.
func spin(description string) func() {
	spinner := getSpinner(description)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				spinner.Add(1)
			}
		}
	}()
	return func() {
		close(done)
		spinner.Finish()
		fmt.Println()
	}
}

func readDocument(path string) (*models.Document, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &models.Document{
		Name: filepath.Base(path),
		Kind: extractor.DetectKind(path, data),
		Data: data,
	}, nil
}

func run(ctx context.Context, cfg *config.Config, opts Options) error {
	if opts.Mode != "attributes" && opts.Mode != "report" {
		return fmt.Errorf("unknown mode %q: use attributes or report", opts.Mode)
	}

	d, err := newDeps(ctx, cfg)
	if err != nil {
		return err
	}

	if opts.Serve {
		srv := server.New(cfg, func(ro server.RunOptions) (*pipeline.Pipeline, error) {
			runCfg := *cfg
			runCfg.Report.Output = ro.Output
			return d.pipeline(&runCfg, ro.OnStage, ro.OnProgress)
		})
		return srv.ListenAndServe(ctx)
	}

	resume, err := readDocument(opts.Resume)
	if err != nil {
		return err
	}
	role, err := readDocument(opts.Role)
	if err != nil {
		return err
	}

	attributes := opts.Attributes
	if attributes == nil {
		attributes = cfg.Analyzer.Attributes
	}

	var (
		bar      *progressbar.ProgressBar
		stopSpin func()
	)
	onStage := func(stage string) {
		if stopSpin != nil {
			stopSpin()
			stopSpin = nil
		}
		switch {
		case stage == pipeline.StageAnalyzing && opts.Mode != "report" && len(attributes) > 0:
			bar = getProgressBar(len(attributes), " Querying attributes")
		case stage == pipeline.StageReporting:
			if bar != nil {
				bar.Finish()
				fmt.Println()
			}
			color.Blue("• %s", stage)
		default:
			stopSpin = spin(" " + strings.ToUpper(stage[:1]) + stage[1:] + "...")
		}
	}
	onProgress := func(done, total int, attribute string) {
		if bar == nil {
			return
		}
		bar.Describe(color.BlueString(" Answered %s", attribute))
		bar.Add(1)
	}

	p, err := d.pipeline(cfg, onStage, onProgress)
	if err != nil {
		return err
	}

	in := pipeline.Input{
		Resume:     resume,
		Role:       role,
		RoleURL:    opts.RoleURL,
		Attributes: attributes,
	}

	var res *pipeline.Result
	if opts.Mode == "report" {
		res, err = p.GenerateReport(ctx, in)
	} else {
		res, err = p.Analyze(ctx, in)
	}
	if stopSpin != nil {
		stopSpin()
	}
	if err != nil {
		return err
	}
	defer res.Close()

	printReport(os.Stdout, res)

	if opts.Interactive {
		interactive(ctx, res.Analyzer(), cfg.UI.Streaming)
	}
	return nil
}

func printReport(w io.Writer, res *pipeline.Result) {
	label := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Fprintln(w)
	if res.Report.Kind == models.ReportAttributes {
		width := 0
		rows := report.Table(res.Report)
		for _, row := range rows {
			width = max(width, len(row.Label))
		}
		for _, row := range rows {
			fmt.Fprintf(w, "%s  %s\n", label(fmt.Sprintf("%-*s", width, row.Label)), row.Text)
		}
	} else {
		fmt.Fprintln(w, res.Content)
	}
	fmt.Fprintln(w)

	for _, warning := range res.Warnings {
		color.Yellow("⚠ %s", warning)
	}
	color.Green("✓ Report written to %s", res.Path)
	if res.Location != "" {
		color.Green("✓ Uploaded to %s", res.Location)
	}
	if uri, err := report.DataURI(res.Path); err == nil {
		fmt.Fprintf(w, "Download: %s\n", uri)
	}
}

func interactive(ctx context.Context, an *analyzer.Analyzer, streaming bool) {
	color.Cyan("\nAsk about the candidate (type 'exit' to quit)")

	scanner := bufio.NewScanner(os.Stdin)
	userPrompt := color.New(color.FgGreen).PrintfFunc()
	assistantPrompt := color.New(color.FgCyan).PrintfFunc()

	for {
		userPrompt("\nYou: ")
		if !scanner.Scan() {
			break
		}

		question := strings.TrimSpace(scanner.Text())
		if strings.ToLower(question) == "exit" {
			break
		}
		if question == "" {
			continue
		}

		assistantPrompt("\nBrightPath: ")
		if streaming {
			stream, err := an.AskStream(ctx, question)
			if err != nil {
				color.Red("Error: %v\n", err)
				continue
			}
			for chunk := range stream {
				if chunk.Err != nil {
					color.Red("Error: %v\n", chunk.Err)
					break
				}
				fmt.Print(chunk.Text)
			}
			fmt.Println()
			continue
		}

		answer, err := an.Ask(ctx, question)
		if err != nil {
			color.Red("Error: %v\n", err)
			continue
		}
		fmt.Println(answer)
	}
}
