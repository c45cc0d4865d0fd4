// Package classify turns one converted document into typed learning
// records. Routing is by filename hint first, then by keyword scan of the
// full text; every decision is a fixed pattern or keyword table.
package classify

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hazyhaar/cefrpipe/corpus"
	"github.com/hazyhaar/cefrpipe/docpipe"
)

// ErrClassification marks a failure inside one extractor.
var ErrClassification = errors.New("classification failed")

// Error reports which extractor failed on which document.
type Error struct {
	Document string
	Kind     corpus.Kind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("classify %s as %s: %v", e.Document, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error { return []error{ErrClassification, e.Err} }

// Config configures a Classifier.
type Config struct {
	// Level is stamped on every record (A1..C2).
	Level string

	// MinWordLength is the shortest accepted vocabulary headword (default: 2).
	MinWordLength int

	// AutoCategorize enables the keyword scan for documents whose filename
	// carries no category hint.
	AutoCategorize bool

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.MinWordLength <= 0 {
		c.MinWordLength = 2
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

type extractor func(doc *docpipe.Document) map[string]corpus.Record

// Classifier extracts records for one level.
type Classifier struct {
	cfg        Config
	logger     *slog.Logger
	extractors map[corpus.Kind]extractor
}

// New creates a Classifier.
func New(cfg Config) *Classifier {
	cfg.defaults()
	c := &Classifier{cfg: cfg, logger: cfg.Logger}
	c.extractors = map[corpus.Kind]extractor{
		corpus.KindVocabulary: c.vocabulary,
		corpus.KindGrammar:    c.grammar,
		corpus.KindReading:    c.reading,
		corpus.KindListening:  c.listening,
		corpus.KindWriting:    c.writing,
		corpus.KindSpeaking:   c.speaking,
	}
	return c
}

// Level returns the level stamped on records.
func (c *Classifier) Level() string { return c.cfg.Level }

// filenameHints are checked in order; the first hint found in the
// lowercased filename routes the whole document.
var filenameHints = []struct {
	hints []string
	kind  corpus.Kind
}{
	{[]string{"vocabulary", "vocab"}, corpus.KindVocabulary},
	{[]string{"grammar", "gram"}, corpus.KindGrammar},
	{[]string{"reading"}, corpus.KindReading},
	{[]string{"listening"}, corpus.KindListening},
	{[]string{"writing"}, corpus.KindWriting},
	{[]string{"speaking"}, corpus.KindSpeaking},
}

// contentKeywords drive the auto-categorize scan. Every matching set runs
// its extractor.
var contentKeywords = []struct {
	kind     corpus.Kind
	keywords []string
}{
	{corpus.KindVocabulary, []string{"vocabulary", "word", "phrase", "meaning"}},
	{corpus.KindGrammar, []string{"grammar", "rule", "tense", "verb"}},
	{corpus.KindReading, []string{"read", "text", "passage", "article"}},
	{corpus.KindListening, []string{"listen", "dialogue", "conversation", "audio"}},
	{corpus.KindWriting, []string{"write", "essay", "letter", "composition"}},
	{corpus.KindSpeaking, []string{"speak", "talk about", "opinion", "discussion"}},
}

// Route returns the kind named by a filename hint.
func Route(filename string) (corpus.Kind, bool) {
	lower := strings.ToLower(filename)
	for _, h := range filenameHints {
		if containsAny(lower, h.hints) {
			return h.kind, true
		}
	}
	return "", false
}

// Detect returns every kind whose keyword set occurs in text, in
// canonical order.
func Detect(text string) []corpus.Kind {
	lower := strings.ToLower(text)
	var kinds []corpus.Kind
	for _, set := range contentKeywords {
		if containsAny(lower, set.keywords) {
			kinds = append(kinds, set.kind)
		}
	}
	return kinds
}

// Kinds returns the extractors that will run for doc.
func (c *Classifier) Kinds(doc *docpipe.Document) []corpus.Kind {
	if k, ok := Route(doc.Filename); ok {
		return []corpus.Kind{k}
	}
	if !c.cfg.AutoCategorize {
		return nil
	}
	return Detect(doc.Text)
}

// Classify extracts records from doc. A failed conversion yields
// docpipe.ErrConversion and no records. A failing extractor is recovered:
// its kind contributes nothing, the others still run, and the returned
// error joins one *Error per failed kind.
func (c *Classifier) Classify(doc *docpipe.Document) (corpus.Result, error) {
	if !doc.OK() {
		c.logger.Warn("classify: skipping failed conversion", "document", doc.Filename, "error", doc.Error)
		return nil, fmt.Errorf("%w: %s: %s", docpipe.ErrConversion, doc.Filename, doc.Error)
	}

	kinds := c.Kinds(doc)
	if len(kinds) == 0 {
		c.logger.Debug("classify: no category matched", "document", doc.Filename)
	}

	res := make(corpus.Result)
	var errs []error
	for _, k := range kinds {
		records, err := c.run(k, doc)
		if err != nil {
			c.logger.Error("classify: extractor failed", "document", doc.Filename, "kind", k, "error", err)
			errs = append(errs, err)
			continue
		}
		if len(records) > 0 {
			res[k] = records
		}
		c.logger.Info("classify: extracted", "document", doc.Filename, "kind", k, "records", len(records))
	}
	return res, errors.Join(errs...)
}

func (c *Classifier) run(k corpus.Kind, doc *docpipe.Document) (records map[string]corpus.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = &Error{Document: doc.Filename, Kind: k, Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	fn, ok := c.extractors[k]
	if !ok {
		return nil, &Error{Document: doc.Filename, Kind: k, Err: errors.New("no extractor")}
	}
	return fn(doc), nil
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// truncate cuts s to n runes and appends "..." when it was longer.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
