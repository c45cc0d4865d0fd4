// Package corpus holds the canonical in-memory representation of the
// learning content extracted for one certification level.
//
// Every output format (json, sqlite, csv, postgresql script) reads record
// fields through Columns and Record.Fields, so the field set of a kind is
// defined exactly once, in schema below.
package corpus

import (
	"fmt"
	"strings"
)

// Kind identifies a content category.
type Kind string

const (
	KindVocabulary Kind = "vocabulary"
	KindGrammar    Kind = "grammar"
	KindReading    Kind = "reading"
	KindListening  Kind = "listening"
	KindWriting    Kind = "writing"
	KindSpeaking   Kind = "speaking"
)

// Kinds lists every kind in canonical order.
var Kinds = []Kind{
	KindVocabulary,
	KindGrammar,
	KindReading,
	KindListening,
	KindWriting,
	KindSpeaking,
}

var storageNames = map[Kind]string{
	KindVocabulary: "vocabulary",
	KindGrammar:    "grammar",
	KindReading:    "reading_materials",
	KindListening:  "listening_materials",
	KindWriting:    "writing_prompts",
	KindSpeaking:   "speaking_topics",
}

// StorageName is the file stem and table name used for the kind.
func (k Kind) StorageName() string {
	if s, ok := storageNames[k]; ok {
		return s
	}
	return string(k)
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	_, ok := storageNames[k]
	return ok
}

// ParseKind accepts a kind name or its storage name.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range Kinds {
		if s == string(k) || s == k.StorageName() {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown content kind: %q", s)
}

// Levels are the certification tiers in ascending order.
var Levels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

// ValidLevel reports whether level is one of Levels (case-insensitive).
func ValidLevel(level string) bool {
	level = strings.ToUpper(level)
	for _, l := range Levels {
		if l == level {
			return true
		}
	}
	return false
}

// schema is the single field list per kind. Order matters: it is the
// column order for tabular and relational outputs.
var schema = map[Kind][]string{
	KindVocabulary: {
		"word", "definition_en", "definition_pt", "level", "category", "examples",
		"phonetic", "part_of_speech", "is_phrasal_verb", "source_document", "context",
	},
	KindGrammar: {
		"rule_name", "category", "level", "description", "examples",
		"rules", "exercises", "source_document", "context",
	},
	KindReading: {
		"title", "content", "word_count", "level", "category",
		"difficulty", "source_document", "questions",
	},
	KindListening: {
		"title", "content", "type", "level", "category",
		"difficulty", "source_document", "questions",
	},
	KindWriting: {
		"title", "prompt", "type", "level", "category",
		"word_limit", "source_document", "suggestions",
	},
	KindSpeaking: {
		"title", "topic", "type", "level", "category",
		"difficulty", "source_document", "questions",
	},
}

// listFields are the fields holding lists or mappings. Flat outputs
// encode them as JSON text.
var listFields = map[string]bool{
	"examples":    true,
	"rules":       true,
	"exercises":   true,
	"questions":   true,
	"suggestions": true,
}

// Columns returns a copy of the ordered field names for kind.
func Columns(k Kind) []string {
	cols := schema[k]
	out := make([]string, len(cols))
	copy(out, cols)
	return out
}

// IsList reports whether the named field carries nested data.
func IsList(field string) bool { return listFields[field] }
