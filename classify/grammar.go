package classify

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/cefrpipe/corpus"
	"github.com/hazyhaar/cefrpipe/docpipe"
)

var (
	sectionHeadingRe = regexp.MustCompile(`^[A-Z][^:]*:`)
	sentenceRe       = regexp.MustCompile(`[^.!?]+[.!?]`)
	bulletRe         = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)
	ruleWordRe       = regexp.MustCompile(`(?i)\b(use|used|form|formed|structure)\b`)
	exerciseRe       = regexp.MustCompile(`(?i)(_{3,}|\(\s*(?:\.{3}|…)\s*\)|^(?:exercise|complete|fill)\b)`)
	examplePrefixRe  = regexp.MustCompile(`(?i)^(?:e\.g\.|eg\.|examples?:|→|✓)\s*`)
)

const (
	descriptionLimit   = 300
	grammarContextSize = 300
	minHeadingLength   = 4
)

type section struct {
	heading string
	body    string
}

// splitSections cuts text at lines that start with a capital letter and
// contain a colon. Text before the first heading is dropped.
func splitSections(text string) []section {
	var out []section
	var cur *section
	var body strings.Builder
	flush := func() {
		if cur != nil {
			cur.body = strings.TrimSpace(body.String())
			out = append(out, *cur)
		}
		body.Reset()
	}
	for _, line := range strings.Split(text, "\n") {
		if sectionHeadingRe.MatchString(line) {
			flush()
			cur = &section{heading: strings.TrimSpace(line)}
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
	}
	flush()
	return out
}

// grammar turns each section of the full text into one rule keyed by its
// heading. A repeated heading keeps the last section.
func (c *Classifier) grammar(doc *docpipe.Document) map[string]corpus.Record {
	out := make(map[string]corpus.Record)
	for _, s := range splitSections(doc.Text) {
		if utf8.RuneCountInString(s.heading) < minHeadingLength {
			continue
		}
		parts := analyzeBody(s.body)
		out[s.heading] = &corpus.Grammar{
			RuleName:       s.heading,
			Category:       GrammarCategory(s.heading),
			Level:          c.cfg.Level,
			Description:    parts.description,
			Examples:       parts.examples,
			Rules:          parts.rules,
			Exercises:      parts.exercises,
			SourceDocument: doc.Filename,
			Context:        truncate(s.body, grammarContextSize),
		}
	}
	return out
}

type bodyParts struct {
	description string
	examples    []string
	rules       []string
	exercises   []string
}

// analyzeBody sorts each line of a section body into exercises, examples,
// rules or prose, in that order of precedence. Quoted strings anywhere in
// the body are examples too.
func analyzeBody(body string) bodyParts {
	p := bodyParts{examples: []string{}, rules: []string{}, exercises: []string{}}
	seen := make(map[string]bool)
	addExample := func(ex string) {
		if ex != "" && !seen[ex] {
			seen[ex] = true
			p.examples = append(p.examples, ex)
		}
	}

	var prose []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case exerciseRe.MatchString(line):
			p.exercises = append(p.exercises, line)
		case examplePrefixRe.MatchString(line):
			addExample(strings.TrimSpace(examplePrefixRe.ReplaceAllString(line, "")))
		case bulletRe.MatchString(line):
			p.rules = append(p.rules, strings.TrimSpace(bulletRe.ReplaceAllString(line, "")))
		case ruleWordRe.MatchString(line):
			p.rules = append(p.rules, line)
			prose = append(prose, line)
		default:
			prose = append(prose, line)
		}
	}
	for _, ex := range Examples(body) {
		addExample(ex)
	}
	p.description = describe(strings.Join(prose, " "))
	return p
}

// describe keeps whole leading sentences up to descriptionLimit runes,
// falling back to a hard cut when the first sentence alone is longer. Text
// after the last terminator is kept as a final sentence.
func describe(prose string) string {
	prose = strings.Join(strings.Fields(prose), " ")
	var sentences []string
	end := 0
	for _, loc := range sentenceRe.FindAllStringIndex(prose, -1) {
		sentences = append(sentences, prose[loc[0]:loc[1]])
		end = loc[1]
	}
	// An unterminated last sentence still counts.
	if tail := strings.TrimSpace(prose[end:]); tail != "" {
		sentences = append(sentences, tail)
	}

	var b strings.Builder
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		n := utf8.RuneCountInString(b.String())
		if n > 0 && n+1+utf8.RuneCountInString(s) > descriptionLimit {
			break
		}
		if n > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s)
	}
	if b.Len() == 0 || utf8.RuneCountInString(b.String()) > descriptionLimit {
		r := []rune(prose)
		if len(r) > descriptionLimit {
			r = r[:descriptionLimit]
		}
		return strings.TrimSpace(string(r))
	}
	return b.String()
}
