package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/cefrpipe/classify"
	"github.com/hazyhaar/cefrpipe/corpus"
)

// itemRule checks one record and returns its issue messages.
type itemRule func(v *Validator, r corpus.Record) []string

// requiredFields must be present and non-empty in every record of a kind.
var requiredFields = map[corpus.Kind][]string{
	corpus.KindVocabulary: {"word", "definition_en", "level", "category"},
	corpus.KindGrammar:    {"rule_name", "category", "level", "description"},
	corpus.KindReading:    {"title", "content", "level", "category"},
	corpus.KindListening:  {"title", "content", "level", "category"},
	corpus.KindWriting:    {"title", "prompt", "level", "category"},
	corpus.KindSpeaking:   {"title", "topic", "level", "category"},
}

func validCategories() map[corpus.Kind][]string {
	return map[corpus.Kind][]string{
		corpus.KindVocabulary: classify.VocabularyCategories(),
		corpus.KindGrammar:    classify.GrammarCategories(),
		corpus.KindReading:    {classify.CategoryReading},
		corpus.KindListening:  {classify.CategoryListening},
		corpus.KindWriting:    {classify.CategoryWriting},
		corpus.KindSpeaking:   {classify.CategorySpeaking},
	}
}

func defaultRules() map[corpus.Kind]itemRule {
	return map[corpus.Kind]itemRule{
		corpus.KindVocabulary: checkVocabulary,
		corpus.KindGrammar:    checkGrammar,
		corpus.KindReading:    checkReading,
		corpus.KindListening:  checkListening,
		corpus.KindWriting:    checkWriting,
		corpus.KindSpeaking:   checkSpeaking,
	}
}

func (v *Validator) common(r corpus.Record) []string {
	var issues []string
	for _, f := range requiredFields[r.Kind()] {
		if isEmpty(corpus.Value(r, f)) {
			issues = append(issues, fmt.Sprintf("required field missing or empty: %s", f))
		}
	}
	cat, _ := corpus.Value(r, "category").(string)
	if valid := v.categories[r.Kind()]; cat != "" && !contains(valid, cat) {
		issues = append(issues, fmt.Sprintf("invalid category %q (valid: %s)", cat, strings.Join(valid, ", ")))
	}
	return issues
}

func checkVocabulary(v *Validator, r corpus.Record) []string {
	rec := r.(*corpus.Vocabulary)
	issues := v.common(r)
	issues = appendShort(issues, "word", rec.Word, v.cfg.MinWordLength)
	issues = appendShort(issues, "definition_en", rec.DefinitionEN, v.cfg.MinDefinitionLength)
	spaced := strings.ContainsAny(rec.Word, " \t")
	switch {
	case rec.IsPhrasalVerb && !spaced:
		issues = append(issues, fmt.Sprintf("marked as phrasal verb but has no space: %q", rec.Word))
	case !rec.IsPhrasalVerb && spaced:
		issues = append(issues, fmt.Sprintf("contains a space but is not marked as phrasal verb: %q", rec.Word))
	}
	if v.cfg.RequireExamples && len(rec.Examples) == 0 {
		issues = append(issues, "no usage examples")
	}
	return issues
}

func checkGrammar(v *Validator, r corpus.Record) []string {
	rec := r.(*corpus.Grammar)
	issues := v.common(r)
	issues = appendShort(issues, "rule_name", rec.RuleName, v.cfg.MinRuleNameLength)
	issues = appendShort(issues, "description", rec.Description, v.cfg.MinDescriptionLength)
	if len(rec.Examples) == 0 {
		issues = append(issues, "no usage examples")
	}
	return issues
}

func checkReading(v *Validator, r corpus.Record) []string {
	rec := r.(*corpus.Reading)
	issues := v.common(r)
	issues = appendShort(issues, "content", rec.Content, v.cfg.MinReadingLength)
	if len(rec.Questions) == 0 {
		issues = append(issues, "no comprehension questions")
	}
	return issues
}

func checkListening(v *Validator, r corpus.Record) []string {
	rec := r.(*corpus.Listening)
	issues := v.common(r)
	issues = appendShort(issues, "content", rec.Content, v.cfg.MinListeningLength)
	if len(rec.Questions) == 0 {
		issues = append(issues, "no comprehension questions")
	}
	if rec.Type == "dialogue" && classify.CountQuotes(rec.Content) < 4 {
		issues = append(issues, "marked as dialogue but has fewer than 4 quotation marks")
	}
	return issues
}

func checkWriting(v *Validator, r corpus.Record) []string {
	rec := r.(*corpus.Writing)
	issues := v.common(r)
	issues = appendShort(issues, "prompt", rec.Prompt, v.cfg.MinPromptLength)
	if len(rec.Suggestions) == 0 {
		issues = append(issues, "no writing suggestions")
	}
	return issues
}

func checkSpeaking(v *Validator, r corpus.Record) []string {
	rec := r.(*corpus.Speaking)
	issues := v.common(r)
	issues = appendShort(issues, "topic", rec.Topic, v.cfg.MinTopicLength)
	if len(rec.Questions) == 0 {
		issues = append(issues, "no discussion questions")
	}
	return issues
}

// appendShort reports a non-empty value below min runes. Empty values are
// already reported as missing.
func appendShort(issues []string, field, value string, min int) []string {
	n := utf8.RuneCountInString(value)
	if n == 0 || n >= min {
		return issues
	}
	return append(issues, fmt.Sprintf("%s too short: %d characters (minimum %d)", field, n, min))
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	case []string:
		return len(x) == 0
	case []corpus.Question:
		return len(x) == 0
	case int:
		return x == 0
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
