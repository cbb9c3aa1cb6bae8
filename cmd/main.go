package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/xhad/brightpath/pkg/config"
	"github.com/xhad/brightpath/pkg/pipeline"
)

type Options struct {
	ConfigPath  string
	Resume      string
	Role        string
	RoleURL     string
	Mode        string
	Out         string
	Interactive bool
	Serve       bool
	// Attributes is nil unless -attributes was given.
	Attributes []string
}

func main() {
	_ = godotenv.Load()

	opts := parseFlags()

	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		color.Red("Failed to load config: %v", err)
		os.Exit(1)
	}
	if opts.Out != "" {
		cfg.Report.Output = opts.Out
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("Invalid config: %v", e)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, opts); err != nil {
		if errors.Is(err, pipeline.ErrMissingUploads) {
			color.Yellow("⚠ %v", err)
		} else {
			color.Red("✗ %v", err)
		}
		os.Exit(1)
	}
}

func parseFlags() Options {
	var opts Options
	var attributes string

	flag.StringVar(&opts.ConfigPath, "config", "", "Path to config file (yaml or toml)")
	flag.StringVar(&opts.Resume, "resume", "", "Path to the resume (PDF, DOCX or text)")
	flag.StringVar(&opts.Role, "role", "", "Path to the role information (PDF, DOCX or text)")
	flag.StringVar(&opts.RoleURL, "role-url", "", "Job posting URL to use as the role information")
	flag.StringVar(&attributes, "attributes", "", "Comma-separated attributes to extract (empty for summary and score only)")
	flag.StringVar(&opts.Mode, "mode", "attributes", "Report mode: attributes or report")
	flag.StringVar(&opts.Out, "out", "", "Report output file")
	flag.BoolVar(&opts.Interactive, "interactive", false, "Ask follow-up questions after the report")
	flag.BoolVar(&opts.Serve, "serve", false, "Start the web UI instead of running once")
	flag.Parse()

	flag.Visit(func(f *flag.Flag) {
		if f.Name == "attributes" {
			opts.Attributes = splitAttributes(attributes)
		}
	})

	return opts
}

func splitAttributes(s string) []string {
	out := []string{}
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}
