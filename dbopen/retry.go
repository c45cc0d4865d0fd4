package dbopen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// TxOption tunes RunTx.
type TxOption func(*txConfig)

type txConfig struct {
	attempts int
	backoff  time.Duration
	logger   *slog.Logger
}

// TxAttempts sets how many times a busy transaction is tried. Default: 3.
func TxAttempts(n int) TxOption { return func(c *txConfig) { c.attempts = n } }

// TxBackoff sets the base wait; attempt i waits i*d. Default: 100ms.
func TxBackoff(d time.Duration) TxOption { return func(c *txConfig) { c.backoff = d } }

// TxLogger receives a WARN line per retry. Default: slog.Default().
func TxLogger(l *slog.Logger) TxOption { return func(c *txConfig) { c.logger = l } }

// IsBusy reports whether err means another connection holds the lock:
// SQLITE_BUSY or SQLITE_LOCKED, including their extended codes.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	// Errors flattened to text by a caller lose their code.
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") ||
		strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked")
}

// RunTx runs fn inside a transaction and commits it. When SQLite reports
// the database busy the whole transaction is rolled back and tried again
// after a linear backoff; any other error is returned as is.
func RunTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error, opts ...TxOption) error {
	cfg := txConfig{attempts: 3, backoff: 100 * time.Millisecond}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.attempts < 1 {
		cfg.attempts = 1
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = runOnce(ctx, db, fn); err == nil || !IsBusy(err) {
			return err
		}
		if attempt == cfg.attempts {
			return fmt.Errorf("dbopen: still busy after %d attempts: %w", attempt, err)
		}
		wait := time.Duration(attempt) * cfg.backoff
		cfg.logger.Warn("dbopen: database busy, retrying transaction",
			"attempt", attempt, "wait", wait, "error", err)
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("dbopen: retry cancelled: %w", ctx.Err())
		case <-t.C:
		}
	}
}

func runOnce(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("dbopen: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("dbopen: commit: %w", err)
	}
	return nil
}
