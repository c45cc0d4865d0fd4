// Package runlog keeps a SQLite history of pipeline runs, one row per level
// run, so that successive runs over the same materials can be compared.
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/cefrpipe/dbopen"
)

// FileName is the history database created under the output directory.
const FileName = "pipeline_runs.db"

// Schema creates the runs table.
const Schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
    run_id           TEXT PRIMARY KEY,
    level            TEXT NOT NULL,
    started_at       INTEGER NOT NULL,
    duration_ms      INTEGER NOT NULL DEFAULT 0,
    documents        INTEGER NOT NULL DEFAULT 0,
    failed_documents INTEGER NOT NULL DEFAULT 0,
    items            INTEGER NOT NULL DEFAULT 0,
    conflicts        INTEGER NOT NULL DEFAULT 0,
    quality_score    REAL,
    formats          TEXT NOT NULL DEFAULT '[]',
    status           TEXT NOT NULL,
    error            TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_level ON pipeline_runs(level, started_at);
`

// Run statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Entry is one level run.
type Entry struct {
	RunID           string    `json:"run_id"`
	Level           string    `json:"level"`
	StartedAt       time.Time `json:"started_at"`
	DurationMs      int64     `json:"duration_ms"`
	Documents       int       `json:"documents"`
	FailedDocuments int       `json:"failed_documents"`
	Items           int       `json:"items"`
	Conflicts       int       `json:"conflicts"`
	QualityScore    *float64  `json:"quality_score,omitempty"`
	Formats         []string  `json:"formats"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
}

// Filter narrows History results.
type Filter struct {
	Level  string
	Status string
	Limit  int // default 20
}

// Store reads and writes the run history.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (creating if needed) the history database at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := dbopen.Open(path,
		dbopen.WithMkdirAll(),
		dbopen.WithJournalMode("WAL"),
		dbopen.WithSchema(Schema))
	if err != nil {
		return nil, fmt.Errorf("runlog: open %s: %w", path, err)
	}
	return New(db, logger), nil
}

// New wraps an already initialised database.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts e, replacing any row with the same run id.
func (s *Store) Record(ctx context.Context, e *Entry) error {
	if e.Status == "" {
		e.Status = StatusSuccess
	}
	formats, err := json.Marshal(nonNil(e.Formats))
	if err != nil {
		return fmt.Errorf("runlog: encode formats: %w", err)
	}
	var score any
	if e.QualityScore != nil {
		score = *e.QualityScore
	}

	query, args, err := sq.Insert("pipeline_runs").
		Options("OR REPLACE").
		Columns("run_id", "level", "started_at", "duration_ms", "documents", "failed_documents",
			"items", "conflicts", "quality_score", "formats", "status", "error").
		Values(e.RunID, e.Level, e.StartedAt.UnixMilli(), e.DurationMs, e.Documents, e.FailedDocuments,
			e.Items, e.Conflicts, score, string(formats), e.Status, e.Error).
		ToSql()
	if err != nil {
		return fmt.Errorf("runlog: build insert: %w", err)
	}
	if err := dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, query, args...)
		return err
	}, dbopen.TxLogger(s.logger)); err != nil {
		return fmt.Errorf("runlog: record %s: %w", e.RunID, err)
	}
	s.logger.Debug("runlog: recorded", "run_id", e.RunID, "level", e.Level, "status", e.Status)
	return nil
}

// History returns the most recent runs matching f, newest first.
func (s *Store) History(ctx context.Context, f Filter) ([]*Entry, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	b := sq.Select("run_id", "level", "started_at", "duration_ms", "documents", "failed_documents",
		"items", "conflicts", "quality_score", "formats", "status", "error").
		From("pipeline_runs").
		OrderBy("started_at DESC", "run_id DESC").
		Limit(uint64(limit))
	if f.Level != "" {
		b = b.Where(sq.Eq{"level": strings.ToUpper(f.Level)})
	}
	if f.Status != "" {
		b = b.Where(sq.Eq{"status": f.Status})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("runlog: build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("runlog: query: %w", err)
	}
	defer rows.Close()

	out := []*Entry{}
	for rows.Next() {
		var (
			e       Entry
			started int64
			score   sql.NullFloat64
			formats string
		)
		if err := rows.Scan(&e.RunID, &e.Level, &started, &e.DurationMs, &e.Documents, &e.FailedDocuments,
			&e.Items, &e.Conflicts, &score, &formats, &e.Status, &e.Error); err != nil {
			return nil, fmt.Errorf("runlog: scan: %w", err)
		}
		e.StartedAt = time.UnixMilli(started).UTC()
		if score.Valid {
			v := score.Float64
			e.QualityScore = &v
		}
		if err := json.Unmarshal([]byte(formats), &e.Formats); err != nil {
			return nil, fmt.Errorf("runlog: decode formats of %s: %w", e.RunID, err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
