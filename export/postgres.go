package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hazyhaar/cefrpipe/corpus"
)

// writePostgreSQL writes <level>_postgresql.sql: table definitions,
// indexes and one INSERT per record of every non-empty kind, wrapped in a
// single transaction. With a DSN configured the same statements are also
// loaded into that database.
func writePostgreSQL(ctx context.Context, j *job, m *Manifest) error {
	c := j.corpus
	body, err := pgBody(c)
	if err != nil {
		return err
	}
	for _, k := range c.NonEmpty() {
		m.Items += c.Len(k)
	}

	var b strings.Builder
	rule := strings.Repeat("=", 53)
	fmt.Fprintf(&b, "-- %s\n-- PostgreSQL script for level %s\n-- Generated %s\n-- %s\n\n",
		rule, c.Level, j.now.Format("2006-01-02T15:04:05Z"), rule)
	b.WriteString("BEGIN;\n\n")
	b.WriteString(body)
	b.WriteString("\nCOMMIT;\n")

	path := filepath.Join(j.dir, c.Level+"_postgresql.sql")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	m.Output = path
	m.Size = fileSize(path)
	m.FilesCreated = 1

	if j.pgDSN == "" {
		return nil
	}
	if err := j.pgLoad(ctx, j.pgDSN, c.Level, body); err != nil {
		return fmt.Errorf("load postgresql: %w", err)
	}
	m.Loaded = true
	return nil
}

// pgBody is the script between BEGIN and COMMIT.
func pgBody(c *corpus.LevelCorpus) (string, error) {
	var b strings.Builder
	for _, k := range corpus.Kinds {
		b.WriteString(pgDDL(k))
		b.WriteByte('\n')
	}
	b.WriteString(strings.Join(pgIndexes, "\n"))
	b.WriteString("\n")
	for _, k := range c.NonEmpty() {
		if err := pgInserts(&b, c, k); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// loadPostgres runs body against the database at dsn in one transaction.
// Rows of the level already present are deleted first so that a re-run
// replaces them instead of adding duplicates.
func loadPostgres(ctx context.Context, dsn, level, body string) error {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer pool.Close()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Tables must exist before the delete; the body's DDL is idempotent.
	for _, k := range corpus.Kinds {
		if _, err := tx.Exec(ctx, pgDDL(k)); err != nil {
			return fmt.Errorf("create %s: %w", k.StorageName(), err)
		}
		if _, err := tx.Exec(ctx, "DELETE FROM "+k.StorageName()+" WHERE level = $1", level); err != nil {
			return fmt.Errorf("clear %s: %w", k.StorageName(), err)
		}
	}
	// No arguments: pgx sends body over the simple protocol, which accepts
	// several statements.
	if _, err := tx.Exec(ctx, body); err != nil {
		return fmt.Errorf("exec script: %w", err)
	}
	return tx.Commit(ctx)
}

func pgInserts(b *strings.Builder, c *corpus.LevelCorpus, k corpus.Kind) error {
	cols := strings.Join(corpus.Columns(k), ", ")
	fmt.Fprintf(b, "\n-- %s\n", k.StorageName())
	for _, r := range c.Records(k) {
		fields := r.Fields()
		vals := make([]string, len(fields))
		for i, f := range fields {
			v, err := flatValue(f.Name, f.Value)
			if err != nil {
				return err
			}
			vals[i] = pgLiteral(v)
		}
		fmt.Fprintf(b, "INSERT INTO %s (%s) VALUES (\n    %s\n);\n",
			k.StorageName(), cols, strings.Join(vals, ",\n    "))
	}
	return nil
}
