package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.MaxFileBytes() != 100*1024*1024 {
		t.Errorf("MaxFileBytes = %d", cfg.MaxFileBytes())
	}
	if !cfg.Supports(".PDF") {
		t.Error("expected .pdf to be supported")
	}
	if len(cfg.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", cfg.Warnings())
	}
}

func TestLoadConfig(t *testing.T) {
	yml := `
paths:
  output_dir: "/tmp/out"
processing:
  min_word_length: 3
  auto_categorize: false
export:
  formats: [json, csv]
  postgres_dsn: "postgres://cefr@localhost:5432/cefr"
`
	path := filepath.Join(t.TempDir(), "settings.yaml")
	os.WriteFile(path, []byte(yml), 0o644)

	cfg, found, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !found {
		t.Error("expected found = true")
	}
	if cfg.Paths.OutputDir != "/tmp/out" {
		t.Errorf("OutputDir = %q", cfg.Paths.OutputDir)
	}
	// Unset keys keep their defaults.
	if cfg.Paths.MaterialsDir != "materials" {
		t.Errorf("MaterialsDir = %q", cfg.Paths.MaterialsDir)
	}
	if cfg.Processing.MinWordLength != 3 || cfg.Processing.AutoCategorize {
		t.Errorf("Processing = %+v", cfg.Processing)
	}
	if cfg.Processing.MinDefinitionLength != 10 {
		t.Errorf("MinDefinitionLength = %d", cfg.Processing.MinDefinitionLength)
	}
	if len(cfg.Export.Formats) != 2 {
		t.Errorf("Formats = %v", cfg.Export.Formats)
	}
	if cfg.Export.PostgresDSN != "postgres://cefr@localhost:5432/cefr" {
		t.Errorf("PostgresDSN = %q", cfg.Export.PostgresDSN)
	}
}

func TestLoadConfig_Missing(t *testing.T) {
	cfg, found, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("expected found = false")
	}
	if cfg.Validation.MinQualityScore != 70 {
		t.Errorf("expected defaults, got %+v", cfg.Validation)
	}
}

func TestLoadConfig_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("export: [unclosed"), 0o644)
	_, _, err := LoadConfig(path)
	if !errors.Is(err, ErrConfiguration) {
		t.Fatalf("expected ErrConfiguration, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty formats", func(c *Config) { c.Export.Formats = nil }},
		{"unknown format", func(c *Config) { c.Export.Formats = []string{"xml"} }},
		{"zero max size", func(c *Config) { c.Extraction.MaxFileSizeMB = 0 }},
		{"no output dir", func(c *Config) { c.Paths.OutputDir = "" }},
		{"zero word length", func(c *Config) { c.Processing.MinWordLength = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}

func TestWarnings_QualityRange(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Validation.MinQualityScore = 120
	if err := cfg.Validate(); err != nil {
		t.Fatalf("out-of-range score must not be fatal: %v", err)
	}
	if len(cfg.Warnings()) != 1 {
		t.Errorf("Warnings = %v", cfg.Warnings())
	}
}

func TestLookup(t *testing.T) {
	cfg := DefaultConfig()

	v, ok := cfg.Lookup("processing.min_word_length")
	if !ok || v != 2 {
		t.Errorf("processing.min_word_length = %v, %v", v, ok)
	}
	v, ok = cfg.Lookup("processing.auto_categorize")
	if !ok || v != true {
		t.Errorf("processing.auto_categorize = %v, %v", v, ok)
	}
	v, ok = cfg.Lookup("export.formats")
	if list, isList := v.([]any); !ok || !isList || len(list) != 4 {
		t.Errorf("export.formats = %v", v)
	}
	if _, ok := cfg.Lookup("export.missing"); ok {
		t.Error("expected missing key to fail")
	}
	if _, ok := cfg.Lookup("processing.min_word_length.deeper"); ok {
		t.Error("expected scalar traversal to fail")
	}
}
