package export

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hazyhaar/cefrpipe/corpus"
)

// column is one relational column derived from a corpus field.
type column struct {
	name    string
	sqlite  string
	pg      string
	notNull bool
}

// pgWidths bounds the short text columns of the postgresql script.
var pgWidths = map[string]string{
	"word":            "VARCHAR(100)",
	"rule_name":       "VARCHAR(200)",
	"title":           "VARCHAR(255)",
	"level":           "VARCHAR(2)",
	"category":        "VARCHAR(50)",
	"type":            "VARCHAR(50)",
	"word_limit":      "VARCHAR(50)",
	"difficulty":      "VARCHAR(20)",
	"phonetic":        "VARCHAR(100)",
	"part_of_speech":  "VARCHAR(20)",
	"source_document": "VARCHAR(255)",
}

var notNullFields = map[string]bool{
	"word": true, "definition_en": true, "rule_name": true,
	"title": true, "content": true, "prompt": true, "topic": true,
	"level": true, "category": true,
}

func columns(k corpus.Kind) []column {
	names := corpus.Columns(k)
	out := make([]column, len(names))
	for i, n := range names {
		c := column{name: n, sqlite: "TEXT", pg: "TEXT", notNull: notNullFields[n]}
		switch {
		case corpus.IsList(n):
			c.pg = "JSONB"
		case n == "is_phrasal_verb":
			c.sqlite, c.pg = "BOOLEAN", "BOOLEAN DEFAULT FALSE"
		case n == "word_count":
			c.sqlite, c.pg = "INTEGER", "INTEGER"
		default:
			if w, ok := pgWidths[n]; ok {
				c.pg = w
			}
		}
		out[i] = c
	}
	return out
}

func columnNames(cols []column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.name
	}
	return out
}

// sqliteDDL is the CREATE TABLE statement of one kind.
func sqliteDDL(k corpus.Kind) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n    id INTEGER PRIMARY KEY AUTOINCREMENT", k.StorageName())
	for _, c := range columns(k) {
		fmt.Fprintf(&b, ",\n    %s %s", c.name, c.sqlite)
		if c.notNull {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteString("\n);")
	return b.String()
}

// pgDDL is the CREATE TABLE statement of one kind for the postgresql script.
func pgDDL(k corpus.Kind) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n    id SERIAL PRIMARY KEY", k.StorageName())
	for _, c := range columns(k) {
		fmt.Fprintf(&b, ",\n    %s %s", c.name, c.pg)
		if c.notNull {
			b.WriteString(" NOT NULL")
		}
	}
	b.WriteString(",\n    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP\n);\n")
	return b.String()
}

// pgIndexes are created after the tables.
var pgIndexes = []string{
	"CREATE INDEX IF NOT EXISTS idx_vocabulary_word ON vocabulary(word);",
	"CREATE INDEX IF NOT EXISTS idx_vocabulary_level ON vocabulary(level);",
	"CREATE INDEX IF NOT EXISTS idx_vocabulary_category ON vocabulary(category);",
	"CREATE INDEX IF NOT EXISTS idx_grammar_level ON grammar(level);",
	"CREATE INDEX IF NOT EXISTS idx_grammar_category ON grammar(category);",
}

// flatValue converts a field value for flat outputs: lists become JSON
// text, scalars pass through.
func flatValue(name string, v any) (any, error) {
	if !corpus.IsList(name) {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", name, err)
	}
	return string(b), nil
}

// textValue renders a flat value as csv cell text.
func textValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	}
	return fmt.Sprint(v)
}

// pgLiteral renders a flat value as a postgresql literal. Strings are
// single-quoted with embedded quotes doubled.
func pgLiteral(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case string:
		return pgQuote(x)
	}
	return pgQuote(fmt.Sprint(v))
}

// pgQuote drops NUL bytes, which postgresql text cannot hold.
func pgQuote(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
