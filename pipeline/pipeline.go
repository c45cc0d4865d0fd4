// Package pipeline runs the stages for one certification level: document
// conversion of materials/<L>, classification into a level corpus, optional
// validation, then export. Every stage writes its artefacts under the
// configured output directory.
//
// A run stops on an unknown level, an unwritable output directory or a
// cancelled context. Anything that fails per document or per format is
// recorded in the summaries and skipped.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/cefrpipe/classify"
	"github.com/hazyhaar/cefrpipe/config"
	"github.com/hazyhaar/cefrpipe/corpus"
	"github.com/hazyhaar/cefrpipe/docpipe"
	"github.com/hazyhaar/cefrpipe/export"
	"github.com/hazyhaar/cefrpipe/idgen"
	"github.com/hazyhaar/cefrpipe/runlog"
	"github.com/hazyhaar/cefrpipe/validate"
)

var (
	// ErrLevel is returned for a level outside A1..C2.
	ErrLevel = errors.New("unknown level")

	// ErrOutput is returned when an output directory or artefact cannot be
	// written.
	ErrOutput = errors.New("output not writable")
)

// AllLevels is the -level value that expands to every level.
const AllLevels = "ALL"

// Options selects the optional stages of a run.
type Options struct {
	Validate bool

	// Formats to export. Empty means the configured export.formats.
	Formats []export.Format

	// SkipExport stops after processing (and validation).
	SkipExport bool
}

// Runner executes pipeline runs against one configuration.
type Runner struct {
	cfg    *config.Config
	logger *slog.Logger
	docs   *docpipe.Pipeline
	runIDs idgen.Generator
	now    func() time.Time
	runs   *runlog.Store
}

// Option customises a Runner.
type Option func(*Runner)

// WithLogger sets the logger of the runner and every stage.
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithRunIDs replaces the run identifier generator.
func WithRunIDs(g idgen.Generator) Option { return func(r *Runner) { r.runIDs = g } }

// WithClock replaces time.Now for the generated_at stamps.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// WithRunLog records every level run in s.
func WithRunLog(s *runlog.Store) Option { return func(r *Runner) { r.runs = s } }

// New creates a Runner. cfg must already be validated.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{
		cfg:    cfg,
		logger: slog.Default(),
		runIDs: idgen.RunID,
		now:    time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	r.docs = docpipe.New(docpipe.Config{
		MaxFileSize: cfg.MaxFileBytes(),
		Extensions:  cfg.Extraction.SupportedFormats,
		Logger:      r.logger,
	})
	return r
}

// ExpandLevels turns a -level value into the list of levels to run.
func ExpandLevels(s string) ([]string, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == AllLevels {
		return append([]string(nil), corpus.Levels...), nil
	}
	if !corpus.ValidLevel(s) {
		return nil, fmt.Errorf("%w: %q (valid: %s, %s)", ErrLevel, s, strings.Join(corpus.Levels, ", "), AllLevels)
	}
	return []string{s}, nil
}

// LevelResult is what one level run produced.
type LevelResult struct {
	Level      string              `json:"level"`
	RunID      string              `json:"run_id"`
	Extraction *ExtractionSummary  `json:"extraction"`
	Processing *ProcessingSummary  `json:"processing"`
	Validation *validate.Summary   `json:"validation,omitempty"`
	Export     *export.Summary     `json:"export,omitempty"`
	Corpus     *corpus.LevelCorpus `json:"-"`
	Reports    validate.Reports    `json:"-"`
}

// RunLevels runs each level in order and stops at the first fatal error.
func (r *Runner) RunLevels(ctx context.Context, levels []string, opts Options) ([]*LevelResult, error) {
	var out []*LevelResult
	for _, l := range levels {
		res, err := r.RunLevel(ctx, l, opts)
		if err != nil {
			return out, err
		}
		out = append(out, res)
	}
	return out, nil
}

// RunLevel runs the whole pipeline for one level. When a run log is
// configured the run is recorded there, successful or not.
func (r *Runner) RunLevel(ctx context.Context, level string, opts Options) (*LevelResult, error) {
	level = strings.ToUpper(strings.TrimSpace(level))
	if !corpus.ValidLevel(level) {
		return nil, fmt.Errorf("%w: %q", ErrLevel, level)
	}
	formats, err := r.formats(opts)
	if err != nil {
		return nil, err
	}

	res := &LevelResult{Level: level, RunID: r.runIDs()}
	startedAt := r.now().UTC()
	start := time.Now()
	err = r.runLevel(ctx, res, formats, opts)
	r.record(ctx, res, startedAt, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runner) runLevel(ctx context.Context, res *LevelResult, formats []export.Format, opts Options) error {
	level, runID := res.Level, res.RunID
	log := r.logger.With("level", level, "run_id", runID)
	start := time.Now()

	// Stage 1: conversion.
	docs, err := r.convertAll(ctx, log, filepath.Join(r.cfg.Paths.MaterialsDir, level))
	if err != nil {
		return err
	}
	res.Extraction = summarizeExtraction(level, runID, r.now().UTC(), docs)
	if err := r.writeExtraction(level, docs, res.Extraction); err != nil {
		return err
	}
	log.Info("pipeline: extraction done",
		"documents", res.Extraction.TotalDocuments,
		"failed", res.Extraction.Failed)

	// Stage 2: classification and aggregation.
	c, proc := r.process(log, level, runID, docs)
	res.Corpus = c
	res.Processing = proc
	if err := r.writeProcessing(c, proc); err != nil {
		return err
	}
	log.Info("pipeline: processing done",
		"categories", proc.TotalCategories,
		"items", proc.TotalItems,
		"conflicts", len(proc.Conflicts))

	// Stage 3: validation.
	if opts.Validate {
		v := r.validator(log)
		res.Reports = v.Validate(c)
		res.Validation = v.Summarize(level, res.Reports)
		if err := r.writeValidation(level, res.Reports, res.Validation); err != nil {
			return err
		}
		log.Info("pipeline: validation done",
			"overall_quality_score", res.Validation.OverallQualityScore,
			"valid_categories", res.Validation.ValidCategories)
	}

	// Stage 4: export.
	if !opts.SkipExport {
		exp := export.New(export.Config{
			Dir:             r.levelDir(dirExport, level),
			IncludeMetadata: r.cfg.Export.IncludeMetadata,
			RunID:           runID,
			PostgresDSN:     r.cfg.Export.PostgresDSN,
			Logger:          log,
			Now:             r.now,
		})
		sum, err := exp.Export(ctx, c, formats)
		res.Export = sum
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOutput, err)
		}
	}

	log.Info("pipeline: level done", "duration_ms", time.Since(start).Milliseconds())
	return nil
}

// record appends the run to the run log. Failures are logged only.
func (r *Runner) record(ctx context.Context, res *LevelResult, startedAt time.Time, took time.Duration, runErr error) {
	if r.runs == nil {
		return
	}
	e := &runlog.Entry{
		RunID:      res.RunID,
		Level:      res.Level,
		StartedAt:  startedAt,
		DurationMs: took.Milliseconds(),
		Status:     runlog.StatusSuccess,
	}
	if res.Extraction != nil {
		e.Documents = res.Extraction.TotalDocuments
		e.FailedDocuments = res.Extraction.Failed
	}
	if res.Processing != nil {
		e.Items = res.Processing.TotalItems
		e.Conflicts = len(res.Processing.Conflicts)
	}
	if res.Validation != nil {
		score := res.Validation.OverallQualityScore
		e.QualityScore = &score
	}
	if res.Export != nil {
		for _, f := range res.Export.Formats {
			if m := res.Export.Results[f]; m != nil && m.Success {
				e.Formats = append(e.Formats, string(f))
			}
		}
	}
	if runErr != nil {
		e.Status = runlog.StatusError
		e.Error = runErr.Error()
	}
	if err := r.runs.Record(context.WithoutCancel(ctx), e); err != nil {
		r.logger.Warn("pipeline: run not recorded", "run_id", res.RunID, "error", err)
	}
}

func (r *Runner) validator(log *slog.Logger) *validate.Validator {
	return validate.New(validate.Config{
		MinWordLength:        r.cfg.Processing.MinWordLength,
		MinDefinitionLength:  r.cfg.Processing.MinDefinitionLength,
		MinRuleNameLength:    r.cfg.Processing.MinRuleNameLength,
		MinDescriptionLength: r.cfg.Processing.MinDescriptionLength,
		MaxIssuesPerItem:     r.cfg.Validation.MaxIssuesPerItem,
		RequireExamples:      r.cfg.Validation.RequireExamples,
		MinQualityScore:      r.cfg.Validation.MinQualityScore,
		Logger:               log,
	})
}

func (r *Runner) formats(opts Options) ([]export.Format, error) {
	if opts.SkipExport {
		return nil, nil
	}
	if len(opts.Formats) > 0 {
		return opts.Formats, nil
	}
	return export.ParseFormats(strings.Join(r.cfg.Export.Formats, ","))
}

// convertAll converts every supported file of dir on a bounded worker pool.
// A missing directory yields no documents. Results are sorted by filename
// so that the merge order does not depend on scheduling.
func (r *Runner) convertAll(ctx context.Context, log *slog.Logger, dir string) ([]*docpipe.Document, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn("pipeline: materials directory not found", "dir", dir)
		return nil, nil
	}
	if err != nil {
		log.Error("pipeline: materials directory unreadable", "dir", dir, "error", err)
		return nil, nil
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		p := filepath.Join(dir, e.Name())
		if !r.docs.Supported(p) {
			log.Warn("pipeline: unsupported file skipped", "file", e.Name())
			continue
		}
		paths = append(paths, p)
	}
	log.Info("pipeline: converting documents", "dir", dir, "files", len(paths))

	docs := make([]*docpipe.Document, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Extraction.Workers, 1))
	for i, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			docs[i] = r.docs.Convert(gctx, p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].Filename < docs[j].Filename })
	return docs, nil
}

// process classifies every converted document and merges the results.
func (r *Runner) process(log *slog.Logger, level, runID string, docs []*docpipe.Document) (*corpus.LevelCorpus, *ProcessingSummary) {
	cl := classify.New(classify.Config{
		Level:          level,
		MinWordLength:  r.cfg.Processing.MinWordLength,
		AutoCategorize: r.cfg.Processing.AutoCategorize,
		Logger:         log,
	})
	agg := corpus.NewAggregator(level, log)

	var failures []DocumentError
	for _, doc := range docs {
		result, err := cl.Classify(doc)
		if err != nil {
			log.Warn("pipeline: classification incomplete", "document", doc.Filename, "error", err)
			failures = append(failures, DocumentError{Document: doc.Filename, Error: err.Error()})
		}
		agg.Merge(doc.Filename, result)
	}

	c := agg.Corpus()
	return c, summarizeProcessing(level, runID, r.now().UTC(), c, agg.Conflicts(), failures)
}
