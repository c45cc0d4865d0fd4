// Package export serializes a LevelCorpus into json documents, an sqlite
// database, csv tables and a postgresql script. Every format reads the
// same field list (corpus.Columns), so outputs stay in schema parity.
//
// Formats are independent: a failing writer is recorded in its Manifest
// and the others still run.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hazyhaar/cefrpipe/corpus"
	"github.com/hazyhaar/cefrpipe/idgen"
)

// ErrExport marks a failed format or an unusable export request.
var ErrExport = errors.New("export failed")

// Format is an output format name.
type Format string

const (
	FormatJSON       Format = "json"
	FormatSQL        Format = "sql"
	FormatCSV        Format = "csv"
	FormatPostgreSQL Format = "postgresql"
)

// Formats lists every format in export order.
var Formats = []Format{FormatJSON, FormatSQL, FormatCSV, FormatPostgreSQL}

// SummaryFile is written in the output directory after every export.
const SummaryFile = "export_summary.json"

// ParseFormats accepts "all" or a comma separated list of format names.
// Duplicates are dropped; order follows the input.
func ParseFormats(s string) ([]Format, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return nil, fmt.Errorf("%w: no format given", ErrExport)
	}
	if s == "all" {
		return append([]Format(nil), Formats...), nil
	}
	var out []Format
	seen := make(map[Format]bool)
	for _, part := range strings.Split(s, ",") {
		f := Format(strings.TrimSpace(part))
		if f == "" || seen[f] {
			continue
		}
		if !f.Valid() {
			return nil, fmt.Errorf("%w: unknown format %q (valid: json, sql, csv, postgresql, all)", ErrExport, f)
		}
		seen[f] = true
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no format given", ErrExport)
	}
	return out, nil
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Manifest describes the outcome of one format.
type Manifest struct {
	Format       Format `json:"format"`
	Success      bool   `json:"success"`
	Output       string `json:"output,omitempty"`
	Size         int64  `json:"size"`
	Items        int    `json:"items"`
	FilesCreated int    `json:"files_created"`
	Loaded       bool   `json:"loaded,omitempty"` // postgresql only: script applied to PostgresDSN
	Error        string `json:"error,omitempty"`
}

// Summary is the content of export_summary.json.
type Summary struct {
	Level       string               `json:"level"`
	RunID       string               `json:"run_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Formats     []Format             `json:"formats_exported"`
	Results     map[Format]*Manifest `json:"results"`
}

// OK reports whether every format succeeded.
func (s *Summary) OK() bool {
	for _, m := range s.Results {
		if !m.Success {
			return false
		}
	}
	return true
}

// Config configures an Exporter.
type Config struct {
	// Dir receives every output file; it is created if missing.
	Dir string

	// IncludeMetadata adds import instructions to import_schema.json.
	IncludeMetadata bool

	// RunID stamps the summary. Empty means a fresh idgen.RunID.
	RunID string

	// PostgresDSN, when set, makes the postgresql format also load its
	// records into that database.
	PostgresDSN string

	Logger *slog.Logger
	Now    func() time.Time
}

// job is what a writer sees of one export call.
type job struct {
	dir      string
	corpus   *corpus.LevelCorpus
	now      time.Time
	metadata bool
	pgDSN    string
	pgLoad   func(ctx context.Context, dsn, level, body string) error
	logger   *slog.Logger
}

// writeFunc produces one format and fills in its manifest.
type writeFunc func(ctx context.Context, j *job, m *Manifest) error

// Exporter writes a corpus in the requested formats.
type Exporter struct {
	cfg     Config
	logger  *slog.Logger
	writers map[Format]writeFunc
	pgLoad  func(ctx context.Context, dsn, level, body string) error
}

// New creates an Exporter.
func New(cfg Config) *Exporter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.RunID == "" {
		cfg.RunID = idgen.RunID()
	}
	return &Exporter{
		cfg:    cfg,
		logger: cfg.Logger,
		pgLoad: loadPostgres,
		writers: map[Format]writeFunc{
			FormatJSON:       writeJSON,
			FormatSQL:        writeSQLite,
			FormatCSV:        writeCSV,
			FormatPostgreSQL: writePostgreSQL,
		},
	}
}

// Export writes c in each format and then the summary file. The returned
// error is non-nil only when the output directory or the summary cannot be
// written; per-format failures live in the summary.
func (e *Exporter) Export(ctx context.Context, c *corpus.LevelCorpus, formats []Format) (*Summary, error) {
	now := e.cfg.Now().UTC()
	s := &Summary{
		Level:       c.Level,
		RunID:       e.cfg.RunID,
		GeneratedAt: now,
		Formats:     []Format{},
		Results:     make(map[Format]*Manifest, len(formats)),
	}
	if err := os.MkdirAll(e.cfg.Dir, 0o755); err != nil {
		return s, fmt.Errorf("export: create %s: %w", e.cfg.Dir, err)
	}

	j := &job{
		dir:      e.cfg.Dir,
		corpus:   c,
		now:      now,
		metadata: e.cfg.IncludeMetadata,
		pgDSN:    e.cfg.PostgresDSN,
		pgLoad:   e.pgLoad,
		logger:   e.logger,
	}
	for _, f := range formats {
		if _, done := s.Results[f]; done {
			continue
		}
		s.Formats = append(s.Formats, f)
		m := e.run(ctx, f, j)
		s.Results[f] = m
		if m.Success {
			e.logger.Info("export: format written",
				"level", c.Level, "format", f, "output", m.Output,
				"items", m.Items, "files", m.FilesCreated, "size", m.Size)
		} else {
			e.logger.Error("export: format failed", "level", c.Level, "format", f, "error", m.Error)
		}
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return s, fmt.Errorf("export: encode summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(e.cfg.Dir, SummaryFile), data, 0o644); err != nil {
		return s, fmt.Errorf("export: write summary: %w", err)
	}
	return s, nil
}

// run executes one writer, turning errors and panics into a failed manifest.
func (e *Exporter) run(ctx context.Context, f Format, j *job) (m *Manifest) {
	m = &Manifest{Format: f}
	fail := func(err error) {
		m.Success = false
		m.Error = fmt.Errorf("%w: %s: %w", ErrExport, f, err).Error()
	}
	defer func() {
		if r := recover(); r != nil {
			fail(fmt.Errorf("panic: %v", r))
		}
	}()

	w, ok := e.writers[f]
	if !ok {
		fail(errors.New("no writer registered"))
		return m
	}
	if err := ctx.Err(); err != nil {
		fail(err)
		return m
	}
	if err := w(ctx, j, m); err != nil {
		fail(err)
		return m
	}
	m.Success = true
	return m
}

// removeEmptyKinds deletes <storage><ext> for every kind c has no records
// of, so a file left by an earlier run never outlives its category.
func removeEmptyKinds(dir string, c *corpus.LevelCorpus, ext string) error {
	for _, k := range corpus.Kinds {
		if c.Len(k) > 0 {
			continue
		}
		path := filepath.Join(dir, k.StorageName()+ext)
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale %s: %w", filepath.Base(path), err)
		}
	}
	return nil
}

// fileSize returns the size of path, or 0 when it cannot be read.
func fileSize(path string) int64 {
	fi, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return fi.Size()
}
