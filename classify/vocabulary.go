package classify

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/cefrpipe/corpus"
	"github.com/hazyhaar/cefrpipe/docpipe"
)

var (
	// Headwords are any run of letters, digits or underscores; the leading
	// group stands in for a word boundary, which RE2 only knows for ASCII.
	wordDefinitionRe = regexp.MustCompile(`(?:^|[^\p{L}\p{N}_])([\p{L}\p{N}_]+)\s*[-–—]\s*(.+)`)
	quotedRe         = regexp.MustCompile(`["“”]([^"“”]+)["“”]`)
	phoneticRe       = regexp.MustCompile(`/([^/]+)/`)
	partOfSpeechRe   = regexp.MustCompile(`\b(noun|verb|adjective|adverb|preposition|conjunction|pronoun)\b`)
)

const contextLimit = 200

// vocabulary scans every paragraph for "word - definition" pairs, then
// every table for word/definition rows. Table rows overwrite paragraph
// entries with the same key.
func (c *Classifier) vocabulary(doc *docpipe.Document) map[string]corpus.Record {
	out := make(map[string]corpus.Record)

	for _, paragraph := range doc.Paragraphs {
		for _, m := range wordDefinitionRe.FindAllStringSubmatch(paragraph, -1) {
			word := strings.TrimSpace(m[1])
			definition := strings.TrimSpace(m[2])
			if utf8.RuneCountInString(word) < c.cfg.MinWordLength || definition == "" {
				continue
			}
			out[strings.ToLower(word)] = &corpus.Vocabulary{
				Word:           word,
				DefinitionEN:   definition,
				Level:          c.cfg.Level,
				Category:       VocabularyCategory(definition),
				Examples:       Examples(paragraph),
				Phonetic:       Phonetic(paragraph),
				PartOfSpeech:   PartOfSpeech(paragraph),
				IsPhrasalVerb:  strings.ContainsAny(word, " \t"),
				SourceDocument: doc.Filename,
				Context:        truncate(paragraph, contextLimit),
			}
		}
	}

	for _, table := range doc.Tables {
		for key, rec := range c.vocabularyTable(doc.Filename, table) {
			out[key] = rec
		}
	}
	return out
}

// vocabularyTable treats row 0 as a header and reads word and definition
// from the first two cells of every later row.
func (c *Classifier) vocabularyTable(source string, t docpipe.Table) map[string]corpus.Record {
	out := make(map[string]corpus.Record)
	if len(t.Rows) < 2 {
		return out
	}
	for _, row := range t.Rows[1:] {
		if len(row) < 2 {
			continue
		}
		word := strings.TrimSpace(row[0])
		definition := strings.TrimSpace(row[1])
		if word == "" || definition == "" || utf8.RuneCountInString(word) < c.cfg.MinWordLength {
			continue
		}
		out[strings.ToLower(word)] = &corpus.Vocabulary{
			Word:           word,
			DefinitionEN:   definition,
			Level:          c.cfg.Level,
			Category:       VocabularyCategory(definition),
			Examples:       []string{},
			PartOfSpeech:   "unknown",
			IsPhrasalVerb:  strings.ContainsAny(word, " \t"),
			SourceDocument: source,
			Context:        fmt.Sprintf("From table: %s - %s", word, definition),
		}
	}
	return out
}

// Examples returns quoted substrings longer than 10 characters.
func Examples(text string) []string {
	out := []string{}
	for _, m := range quotedRe.FindAllStringSubmatch(text, -1) {
		ex := strings.TrimSpace(m[1])
		if utf8.RuneCountInString(ex) > 10 {
			out = append(out, ex)
		}
	}
	return out
}

// Phonetic returns the first /.../ transcription in text.
func Phonetic(text string) string {
	if m := phoneticRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// PartOfSpeech returns the first word-class keyword in text, or "unknown".
func PartOfSpeech(text string) string {
	if m := partOfSpeechRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return "unknown"
}
