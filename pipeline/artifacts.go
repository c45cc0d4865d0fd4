package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hazyhaar/cefrpipe/classify"
	"github.com/hazyhaar/cefrpipe/corpus"
	"github.com/hazyhaar/cefrpipe/docpipe"
	"github.com/hazyhaar/cefrpipe/validate"
)

// Output subdirectories, each holding one folder per level.
const (
	dirRaw       = "raw_extraction"
	dirProcessed = "processed_data"
	dirReports   = "reports"
	dirExport    = "database_ready"
)

func (r *Runner) levelDir(stage, level string) string {
	return filepath.Join(r.cfg.Paths.OutputDir, stage, level)
}

// DocumentReport is the per-file line of the extraction summary.
type DocumentReport struct {
	Filename string         `json:"filename"`
	Format   docpipe.Format `json:"file_type,omitempty"`
	Status   docpipe.Status `json:"status"`
	Error    string         `json:"error,omitempty"`
	Words    int            `json:"words"`
	Tables   int            `json:"tables"`
	Pages    int            `json:"pages,omitempty"`
	NeedsOCR bool           `json:"needs_ocr,omitempty"`
	Route    corpus.Kind    `json:"routed_to,omitempty"`
}

// ExtractionSummary is extraction_summary.json.
type ExtractionSummary struct {
	Level          string           `json:"level"`
	RunID          string           `json:"run_id"`
	GeneratedAt    time.Time        `json:"generated_at"`
	TotalDocuments int              `json:"total_documents"`
	Successful     int              `json:"successful_extractions"`
	Failed         int              `json:"failed_extractions"`
	FileTypes      []string         `json:"file_types"`
	TotalPages     int              `json:"total_pages"`
	TotalWords     int              `json:"total_words"`
	Documents      []DocumentReport `json:"documents"`
}

func summarizeExtraction(level, runID string, now time.Time, docs []*docpipe.Document) *ExtractionSummary {
	s := &ExtractionSummary{
		Level:       level,
		RunID:       runID,
		GeneratedAt: now,
		FileTypes:   []string{},
		Documents:   []DocumentReport{},
	}
	types := make(map[string]bool)
	for _, d := range docs {
		s.TotalDocuments++
		rep := DocumentReport{Filename: d.Filename, Format: d.Format, Status: d.Status, Error: d.Error}
		if k, ok := classify.Route(d.Filename); ok {
			rep.Route = k
		}
		if !d.OK() {
			s.Failed++
			s.Documents = append(s.Documents, rep)
			continue
		}
		s.Successful++
		types[string(d.Format)] = true
		rep.Words = len(strings.Fields(d.Text))
		rep.Tables = len(d.Tables)
		rep.Pages = len(d.Pages)
		rep.NeedsOCR = d.Quality != nil && d.Quality.NeedsOCR()
		s.TotalWords += rep.Words
		s.TotalPages += rep.Pages
		s.Documents = append(s.Documents, rep)
	}
	for t := range types {
		s.FileTypes = append(s.FileTypes, t)
	}
	sort.Strings(s.FileTypes)
	return s
}

// ProcessingSummary is processing_summary.json.
type ProcessingSummary struct {
	Level           string            `json:"level"`
	RunID           string            `json:"run_id"`
	GeneratedAt     time.Time         `json:"generated_at"`
	TotalCategories int               `json:"total_categories"`
	TotalItems      int               `json:"total_items"`
	Counts          map[string]int    `json:"counts"`
	Conflicts       []corpus.Conflict `json:"conflicts"`
	Errors          []DocumentError   `json:"errors"`
}

// DocumentError is a classification failure kept for the summary.
type DocumentError struct {
	Document string `json:"document"`
	Error    string `json:"error"`
}

func summarizeProcessing(level, runID string, now time.Time, c *corpus.LevelCorpus, conflicts []corpus.Conflict, errs []DocumentError) *ProcessingSummary {
	s := &ProcessingSummary{
		Level:           level,
		RunID:           runID,
		GeneratedAt:     now,
		TotalCategories: len(c.NonEmpty()),
		TotalItems:      c.Total(),
		Counts:          make(map[string]int, len(corpus.Kinds)),
		Conflicts:       conflicts,
		Errors:          errs,
	}
	for k, n := range c.Counts() {
		s.Counts[k.StorageName()] = n
	}
	if s.Conflicts == nil {
		s.Conflicts = []corpus.Conflict{}
	}
	if s.Errors == nil {
		s.Errors = []DocumentError{}
	}
	return s
}

func (r *Runner) writeExtraction(level string, docs []*docpipe.Document, sum *ExtractionSummary) error {
	dir := r.levelDir(dirRaw, level)
	raw := make(map[string]*docpipe.Document, len(docs))
	for _, d := range docs {
		raw[d.Filename] = d
	}
	if err := writeJSONFile(dir, "raw_extraction.json", raw); err != nil {
		return err
	}
	return writeJSONFile(dir, "extraction_summary.json", sum)
}

func (r *Runner) writeProcessing(c *corpus.LevelCorpus, sum *ProcessingSummary) error {
	dir := r.levelDir(dirProcessed, c.Level)
	for _, k := range corpus.Kinds {
		if c.Len(k) > 0 {
			continue
		}
		stale := filepath.Join(dir, k.StorageName()+".json")
		if err := os.Remove(stale); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %w", ErrOutput, err)
		}
	}
	for _, k := range c.NonEmpty() {
		data, err := c.MarshalKind(k)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		if err := writeRawJSON(dir, k.StorageName()+".json", data); err != nil {
			return err
		}
	}
	return writeJSONFile(dir, "processing_summary.json", sum)
}

func (r *Runner) writeValidation(level string, reports validate.Reports, sum *validate.Summary) error {
	dir := r.levelDir(dirReports, level)
	if err := writeJSONFile(dir, "validation_report.json", reports); err != nil {
		return err
	}
	return writeJSONFile(dir, "validation_summary.json", sum)
}

func writeJSONFile(dir, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return writeRawJSON(dir, name, data)
}

// writeRawJSON indents compact JSON into dir/name, creating dir.
func writeRawJSON(dir, name string, compact []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return fmt.Errorf("indent %s: %w", name, err)
	}
	buf.WriteByte('\n')
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("%w: %w", ErrOutput, err)
	}
	return nil
}
