package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hazyhaar/cefrpipe/corpus"
)

const (
	allDataFile      = "all_data.json"
	importSchemaFile = "import_schema.json"
	schemaVersion    = "1.0"
)

type importSchema struct {
	Version      string                    `json:"version"`
	Level        string                    `json:"level"`
	GeneratedAt  time.Time                 `json:"generated_at"`
	Categories   map[string]categorySchema `json:"categories"`
	Instructions map[string]string         `json:"import_instructions,omitempty"`
}

type categorySchema struct {
	ItemCount  int             `json:"item_count"`
	SampleItem json.RawMessage `json:"sample_item"`
	Fields     []string        `json:"fields"`
}

var importInstructions = map[string]string{
	"database":   "Run the generated SQL script to create the tables",
	"api":        "Import the per-category JSON files through the API",
	"validation": "Review the validation reports before importing",
}

// writeJSON writes <storage>.json per non-empty kind, all_data.json and
// import_schema.json.
func writeJSON(_ context.Context, j *job, m *Manifest) error {
	c := j.corpus
	schema := importSchema{
		Version:     schemaVersion,
		Level:       c.Level,
		GeneratedAt: j.now,
		Categories:  make(map[string]categorySchema),
	}
	if j.metadata {
		schema.Instructions = importInstructions
	}
	if err := removeEmptyKinds(j.dir, c, ".json"); err != nil {
		return err
	}

	for _, k := range c.NonEmpty() {
		data, err := c.MarshalKind(k)
		if err != nil {
			return fmt.Errorf("encode %s: %w", k, err)
		}
		if err := writeIndented(filepath.Join(j.dir, k.StorageName()+".json"), data); err != nil {
			return err
		}
		sample, err := corpus.MarshalRecord(c.Records(k)[0])
		if err != nil {
			return fmt.Errorf("encode %s sample: %w", k, err)
		}
		schema.Categories[k.StorageName()] = categorySchema{
			ItemCount:  c.Len(k),
			SampleItem: sample,
			Fields:     corpus.Columns(k),
		}
		m.FilesCreated++
	}

	all, err := c.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}
	allPath := filepath.Join(j.dir, allDataFile)
	if err := writeIndented(allPath, all); err != nil {
		return err
	}

	data, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("encode import schema: %w", err)
	}
	if err := writeIndented(filepath.Join(j.dir, importSchemaFile), data); err != nil {
		return err
	}

	m.FilesCreated += 2
	m.Output = allPath
	m.Size = fileSize(allPath)
	m.Items = c.Total()
	return nil
}

// writeIndented re-indents compact JSON before writing it.
func writeIndented(path string, compact []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, compact, "", "  "); err != nil {
		return fmt.Errorf("indent %s: %w", filepath.Base(path), err)
	}
	buf.WriteByte('\n')
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
