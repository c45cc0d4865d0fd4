package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/cefrpipe/config"
	"github.com/hazyhaar/cefrpipe/export"
	"github.com/hazyhaar/cefrpipe/pipeline"
)

func testOptions(t *testing.T) options {
	t.Helper()
	root := t.TempDir()
	dir := filepath.Join(root, "materials", "A1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "vocabulary.txt"), []byte("apple - a round fruit"), 0o644); err != nil {
		t.Fatal(err)
	}
	return options{
		configPath: filepath.Join(root, "missing.yaml"),
		level:      "A1",
		materials:  filepath.Join(root, "materials"),
		output:     filepath.Join(root, "output"),
		logLevel:   "error",
	}
}

func TestRun(t *testing.T) {
	o := testOptions(t)
	o.validate = true
	o.export = "json,csv"

	var stdout bytes.Buffer
	if err := run(context.Background(), o, &stdout); err != nil {
		t.Fatal(err)
	}
	var reports []levelReport
	if err := json.Unmarshal(stdout.Bytes(), &reports); err != nil {
		t.Fatalf("stdout is not a report: %v\n%s", err, stdout.String())
	}
	if len(reports) != 1 {
		t.Fatalf("reports = %+v", reports)
	}
	r := reports[0]
	if r.Level != "A1" || r.Documents != 1 || r.Items != 1 || r.Counts["vocabulary"] != 1 {
		t.Errorf("report = %+v", r)
	}
	if r.QualityScore == nil {
		t.Error("validation score missing")
	}
	if len(r.Exported) != 2 || r.Exported[0] != export.FormatJSON || r.Exported[1] != export.FormatCSV {
		t.Errorf("exported = %v", r.Exported)
	}
	if _, err := os.Stat(filepath.Join(o.output, "database_ready", "A1", "all_data.json")); err != nil {
		t.Error(err)
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*options)
		want   error
	}{
		{"bad level", func(o *options) { o.level = "Z1" }, pipeline.ErrLevel},
		{"bad export format", func(o *options) { o.export = "xml" }, export.ErrExport},
		{"bad log level", func(o *options) { o.logLevel = "loud" }, config.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testOptions(t)
			tt.modify(&o)
			if err := run(context.Background(), o, &bytes.Buffer{}); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRun_BadConfigFile(t *testing.T) {
	o := testOptions(t)
	if err := os.WriteFile(o.configPath, []byte("paths: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := run(context.Background(), o, &bytes.Buffer{}); !errors.Is(err, config.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

func TestRun_Watch(t *testing.T) {
	o := testOptions(t)
	o.watch = 20 * time.Millisecond
	o.export = "json"

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	// Rewritten a few times so that at least one change lands after the
	// first run has set the baseline.
	go func() {
		path := filepath.Join(o.materials, "A1", "more_vocabulary.txt")
		for _, def := range []string{"a long yellow fruit", "a yellow fruit", "a sweet yellow fruit"} {
			time.Sleep(250 * time.Millisecond)
			_ = os.WriteFile(path, []byte("banana - "+def), 0o644)
		}
	}()

	var stdout bytes.Buffer
	if err := run(ctx, o, &stdout); err != nil {
		t.Fatal(err)
	}

	dec := json.NewDecoder(&stdout)
	var last []levelReport
	runs := 0
	for dec.More() {
		var reports []levelReport
		if err := dec.Decode(&reports); err != nil {
			t.Fatal(err)
		}
		if len(reports) > 0 {
			last = reports
			runs++
		}
	}
	if runs < 2 {
		t.Fatalf("runs = %d, want a re-run after the materials changed", runs)
	}
	if last[0].Items != 2 {
		t.Errorf("last run items = %d, want 2", last[0].Items)
	}
}
