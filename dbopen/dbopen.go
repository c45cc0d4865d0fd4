// Package dbopen opens the SQLite databases of the exporter and the run
// history with a fixed set of pragmas applied via EXEC.
//
// Default pragmas:
//
//	foreign_keys = ON
//	journal_mode = DELETE
//	busy_timeout = 10000
//	synchronous  = NORMAL
//
// The default journal mode keeps the export a single self-contained file.
// The run history overrides it with WAL.
// Callers must blank-import the driver:
//
//	import _ "modernc.org/sqlite"
//	db, err := dbopen.Open("output/A1_data.db", dbopen.WithRecreate())
//
// In tests:
//
//	db := dbopen.OpenMemory(t)
package dbopen

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

type config struct {
	busyTimeout int
	journalMode string
	synchronous string
	foreignKeys bool
	mkdirAll    bool
	recreate    bool
	schemas     []string
}

func defaults() config {
	return config{
		busyTimeout: 10_000,
		journalMode: "DELETE",
		synchronous: "NORMAL",
		foreignKeys: true,
	}
}

// Option customises Open behaviour.
type Option func(*config)

// WithBusyTimeout sets PRAGMA busy_timeout in milliseconds. Default: 10000.
func WithBusyTimeout(ms int) Option { return func(c *config) { c.busyTimeout = ms } }

// WithJournalMode sets PRAGMA journal_mode. Default: "DELETE".
func WithJournalMode(mode string) Option { return func(c *config) { c.journalMode = mode } }

// WithSynchronous sets PRAGMA synchronous. Default: "NORMAL".
func WithSynchronous(mode string) Option { return func(c *config) { c.synchronous = mode } }

// WithMkdirAll creates parent directories of the database path before opening.
func WithMkdirAll() Option { return func(c *config) { c.mkdirAll = true } }

// WithRecreate removes an existing database file (and its journal sidecars)
// before opening, so every run starts from an empty schema.
func WithRecreate() Option { return func(c *config) { c.recreate = true } }

// WithSchema queues inline SQL to execute after pragmas are applied.
func WithSchema(s string) Option { return func(c *config) { c.schemas = append(c.schemas, s) } }

// WithoutForeignKeys disables PRAGMA foreign_keys.
func WithoutForeignKeys() Option { return func(c *config) { c.foreignKeys = false } }

// Open opens an SQLite database at path with the configured pragmas and
// schema statements.
func Open(path string, opts ...Option) (*sql.DB, error) {
	cfg := defaults()
	for _, o := range opts {
		o(&cfg)
	}

	if path != ":memory:" {
		if cfg.mkdirAll {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("dbopen: mkdir: %w", err)
			}
		}
		if cfg.recreate {
			if err := removeDB(path); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("dbopen: open: %w", err)
	}

	if err := applyPragmas(db, &cfg); err != nil {
		db.Close()
		return nil, err
	}

	for _, s := range cfg.schemas {
		if _, err := db.Exec(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("dbopen: exec schema: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("dbopen: ping: %w", err)
	}

	return db, nil
}

// OpenMemory opens an in-memory SQLite database for testing.
// It sets MaxOpenConns(1) so every query hits the same database, and
// registers t.Cleanup to close it.
func OpenMemory(t testing.TB, opts ...Option) *sql.DB {
	t.Helper()
	db, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("dbopen.OpenMemory: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func removeDB(path string) error {
	for _, p := range []string{path, path + "-journal", path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("dbopen: remove %s: %w", p, err)
		}
	}
	return nil
}

func applyPragmas(db *sql.DB, cfg *config) error {
	fk := "ON"
	if !cfg.foreignKeys {
		fk = "OFF"
	}

	pragmas := []string{
		fmt.Sprintf("PRAGMA foreign_keys = %s", fk),
		fmt.Sprintf("PRAGMA journal_mode = %s", cfg.journalMode),
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.busyTimeout),
		fmt.Sprintf("PRAGMA synchronous = %s", cfg.synchronous),
	}

	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("dbopen: %s: %w", p, err)
		}
	}
	return nil
}
