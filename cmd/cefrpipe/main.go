// Command cefrpipe turns learning materials into a validated, exportable
// content corpus per certification level.
//
// Usage:
//
//	cefrpipe -level B1                        # convert, classify, export
//	cefrpipe -level ALL -validate             # every level, with reports
//	cefrpipe -level A2 -export json,sql       # selected formats only
//	cefrpipe -level B1 -watch 5s              # re-run whenever materials change
//	cefrpipe -mcp                             # serve the pipeline over MCP on stdio
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/cefrpipe/config"
	"github.com/hazyhaar/cefrpipe/export"
	"github.com/hazyhaar/cefrpipe/pipeline"
	"github.com/hazyhaar/cefrpipe/runlog"
	"github.com/hazyhaar/cefrpipe/watch"
)

const version = "1.0.0"

type options struct {
	configPath string
	level      string
	validate   bool
	export     string
	materials  string
	output     string
	logLevel   string
	mcp        bool
	watch      time.Duration
	pgDSN      string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "config.yaml", "path to YAML config file (defaults apply when missing)")
	flag.StringVar(&o.level, "level", pipeline.AllLevels, "level to process: A1, A2, B1, B2, C1, C2 or ALL")
	flag.BoolVar(&o.validate, "validate", false, "run quality validation and write reports")
	flag.StringVar(&o.export, "export", "", "export formats: json, sql, csv, postgresql, all or a comma list (default: config)")
	flag.StringVar(&o.materials, "materials", "", "materials directory (overrides paths.materials_dir)")
	flag.StringVar(&o.output, "output", "", "output directory (overrides paths.output_dir)")
	flag.StringVar(&o.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides logging.level)")
	flag.BoolVar(&o.mcp, "mcp", false, "serve the pipeline as MCP tools on stdio")
	flag.StringVar(&o.pgDSN, "postgres-dsn", os.Getenv("DATABASE_DSN"), "load the postgresql export into this database (overrides export.postgres_dsn)")
	flag.DurationVar(&o.watch, "watch", 0, "after the first run, poll the materials directory at this interval and re-run on change")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, o, os.Stdout); err != nil {
		slog.Error("cefrpipe: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options, stdout io.Writer) error {
	cfg, found, err := config.LoadConfig(o.configPath)
	if err != nil {
		return err
	}
	if o.materials != "" {
		cfg.Paths.MaterialsDir = o.materials
	}
	if o.output != "" {
		cfg.Paths.OutputDir = o.output
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.pgDSN != "" {
		cfg.Export.PostgresDSN = o.pgDSN
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)
	if !found {
		logger.Info("cefrpipe: config file not found, using defaults", "path", o.configPath)
	}
	for _, w := range cfg.Warnings() {
		logger.Warn("cefrpipe: config", "warning", w)
	}

	ropts := []pipeline.Option{pipeline.WithLogger(logger)}
	historyPath := filepath.Join(cfg.Paths.OutputDir, runlog.FileName)
	if runs, err := runlog.Open(historyPath, logger); err != nil {
		logger.Warn("cefrpipe: run history disabled", "path", historyPath, "error", err)
	} else {
		defer runs.Close()
		ropts = append(ropts, pipeline.WithRunLog(runs))
	}
	runner := pipeline.New(cfg, ropts...)

	if o.mcp {
		srv := mcp.NewServer(&mcp.Implementation{Name: "cefrpipe", Version: version}, nil)
		runner.RegisterMCP(srv)
		logger.Info("cefrpipe: serving MCP on stdio")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
			return fmt.Errorf("mcp: %w", err)
		}
		return nil
	}

	levels, err := pipeline.ExpandLevels(o.level)
	if err != nil {
		return err
	}
	opts := pipeline.Options{Validate: o.validate}
	if o.export != "" {
		if opts.Formats, err = export.ParseFormats(o.export); err != nil {
			return err
		}
	}

	results, err := runner.RunLevels(ctx, levels, opts)
	printReport(stdout, results)
	if err != nil || o.watch <= 0 {
		return err
	}

	w := watch.New(watch.DirFingerprint(cfg.Paths.MaterialsDir), watch.Options{
		Interval: o.watch,
		Debounce: o.watch,
		Logger:   logger,
	})
	w.OnChange(ctx, func(ctx context.Context) error {
		results, err := runner.RunLevels(ctx, levels, opts)
		printReport(stdout, results)
		return err
	})
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	hopts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stderr, hopts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, hopts))
}

// levelReport is one line of the stdout summary.
type levelReport struct {
	Level        string            `json:"level"`
	RunID        string            `json:"run_id"`
	Documents    int               `json:"documents"`
	Failed       int               `json:"failed_documents"`
	Items        int               `json:"items"`
	Counts       map[string]int    `json:"counts"`
	QualityScore *float64          `json:"overall_quality_score,omitempty"`
	Exported     []export.Format   `json:"formats_exported,omitempty"`
	ExportErrors map[string]string `json:"export_errors,omitempty"`
}

func printReport(w io.Writer, results []*pipeline.LevelResult) {
	out := make([]levelReport, 0, len(results))
	for _, r := range results {
		rep := levelReport{
			Level:     r.Level,
			RunID:     r.RunID,
			Documents: r.Extraction.TotalDocuments,
			Failed:    r.Extraction.Failed,
			Items:     r.Processing.TotalItems,
			Counts:    r.Processing.Counts,
		}
		if r.Validation != nil {
			score := r.Validation.OverallQualityScore
			rep.QualityScore = &score
		}
		if r.Export != nil {
			for _, f := range r.Export.Formats {
				m := r.Export.Results[f]
				if m.Success {
					rep.Exported = append(rep.Exported, f)
					continue
				}
				if rep.ExportErrors == nil {
					rep.ExportErrors = make(map[string]string)
				}
				rep.ExportErrors[string(f)] = m.Error
			}
		}
		out = append(out, rep)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}
