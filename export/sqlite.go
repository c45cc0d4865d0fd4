package export

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/hazyhaar/cefrpipe/corpus"
	"github.com/hazyhaar/cefrpipe/dbopen"
)

// sqliteSchema creates all six tables, empty kinds included.
func sqliteSchema() string {
	var s string
	for _, k := range corpus.Kinds {
		s += sqliteDDL(k) + "\n"
	}
	return s
}

// writeSQLite builds <level>_data.db from scratch and fills it in one
// transaction.
func writeSQLite(ctx context.Context, j *job, m *Manifest) error {
	path := filepath.Join(j.dir, j.corpus.Level+"_data.db")
	db, err := dbopen.Open(path, dbopen.WithRecreate(), dbopen.WithSchema(sqliteSchema()))
	if err != nil {
		return err
	}

	n := 0
	err = dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		n = 0
		for _, k := range j.corpus.NonEmpty() {
			inserted, err := insertKind(ctx, tx, j.corpus, k)
			if err != nil {
				return err
			}
			n += inserted
		}
		return nil
	}, dbopen.TxLogger(j.logger.With("level", j.corpus.Level)))
	if cerr := db.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close database: %w", cerr)
	}
	if err != nil {
		return err
	}

	m.Output = path
	m.Size = fileSize(path)
	m.Items = n
	m.FilesCreated = 1
	return nil
}

func insertKind(ctx context.Context, tx *sql.Tx, c *corpus.LevelCorpus, k corpus.Kind) (int, error) {
	cols := columnNames(columns(k))
	for _, r := range c.Records(k) {
		fields := r.Fields()
		vals := make([]any, len(fields))
		for i, f := range fields {
			v, err := flatValue(f.Name, f.Value)
			if err != nil {
				return 0, err
			}
			vals[i] = v
		}
		query, args, err := sq.Insert(k.StorageName()).Columns(cols...).Values(vals...).ToSql()
		if err != nil {
			return 0, fmt.Errorf("build insert %s: %w", k.StorageName(), err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("insert %s: %w", k.StorageName(), err)
		}
	}
	return c.Len(k), nil
}
