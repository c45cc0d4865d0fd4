package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hazyhaar/cefrpipe/corpus"
)

// csvColumns is the reduced projection written per kind. Long text and
// nested fields stay in the json and relational outputs.
var csvColumns = map[corpus.Kind][]string{
	corpus.KindVocabulary: {"word", "definition_en", "definition_pt", "level", "category",
		"phonetic", "part_of_speech", "is_phrasal_verb", "source_document"},
	corpus.KindGrammar:   {"rule_name", "category", "level", "description", "source_document"},
	corpus.KindReading:   {"title", "word_count", "level", "category", "difficulty", "source_document"},
	corpus.KindListening: {"title", "type", "level", "category", "difficulty", "source_document"},
	corpus.KindWriting:   {"title", "type", "level", "category", "word_limit", "source_document"},
	corpus.KindSpeaking:  {"title", "type", "level", "category", "difficulty", "source_document"},
}

// writeCSV writes <storage>.csv per non-empty kind.
func writeCSV(_ context.Context, j *job, m *Manifest) error {
	if err := removeEmptyKinds(j.dir, j.corpus, ".csv"); err != nil {
		return err
	}
	for _, k := range j.corpus.NonEmpty() {
		path := filepath.Join(j.dir, k.StorageName()+".csv")
		if err := writeCSVFile(path, j.corpus, k); err != nil {
			return err
		}
		m.FilesCreated++
		m.Size += fileSize(path)
		m.Items += j.corpus.Len(k)
	}
	m.Output = j.dir
	return nil
}

func writeCSVFile(path string, c *corpus.LevelCorpus, k corpus.Kind) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close %s: %w", filepath.Base(path), cerr)
		}
	}()

	cols := csvColumns[k]
	if cols == nil {
		cols = corpus.Columns(k)
	}
	w := csv.NewWriter(f)
	if err := w.Write(cols); err != nil {
		return err
	}
	row := make([]string, len(cols))
	for _, r := range c.Records(k) {
		for i, name := range cols {
			v, err := flatValue(name, corpus.Value(r, name))
			if err != nil {
				return err
			}
			row[i] = textValue(v)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
