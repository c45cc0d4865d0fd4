package classify

import (
	"regexp"
	"strings"
)

// General is the fallback category of both taxonomies.
const General = "general"

// Fixed categories of the passage kinds.
const (
	CategoryReading   = "reading_comprehension"
	CategoryListening = "listening_comprehension"
	CategoryWriting   = "writing_practice"
	CategorySpeaking  = "speaking_practice"
)

type topic struct {
	name     string
	keywords []string
}

// vocabularyTopics is matched by substring against the definition.
var vocabularyTopics = []topic{
	{"family", []string{"family", "mother", "father", "sister", "brother"}},
	{"food", []string{"food", "eat", "drink", "cook", "restaurant"}},
	{"jobs", []string{"job", "work", "career", "profession", "employee"}},
	{"weather", []string{"weather", "climate", "temperature", "rain", "sun"}},
	{"transport", []string{"transport", "car", "bus", "train", "airplane"}},
	{"house", []string{"house", "home", "room", "furniture", "kitchen"}},
}

type grammarTopic struct {
	name string
	re   *regexp.Regexp
}

// grammarTopics is matched on word boundaries against the rule name.
var grammarTopics = []grammarTopic{
	{"tenses", regexp.MustCompile(`(?i)\b(tenses?|present|past|future)\b`)},
	{"conditionals", regexp.MustCompile(`(?i)\b(conditionals?|if)\b`)},
	{"modals", regexp.MustCompile(`(?i)\b(modals?|can|must|should)\b`)},
	{"prepositions", regexp.MustCompile(`(?i)\b(prepositions?|in|on|at)\b`)},
}

// VocabularyCategory returns the first topic whose keyword occurs in the
// definition, or General.
func VocabularyCategory(definition string) string {
	lower := strings.ToLower(definition)
	for _, t := range vocabularyTopics {
		if containsAny(lower, t.keywords) {
			return t.name
		}
	}
	return General
}

// GrammarCategory returns the first grammar topic named in ruleName, or
// General.
func GrammarCategory(ruleName string) string {
	for _, t := range grammarTopics {
		if t.re.MatchString(ruleName) {
			return t.name
		}
	}
	return General
}

// VocabularyCategories lists every category VocabularyCategory can return.
func VocabularyCategories() []string {
	out := make([]string, 0, len(vocabularyTopics)+1)
	for _, t := range vocabularyTopics {
		out = append(out, t.name)
	}
	return append(out, General)
}

// GrammarCategories lists every category GrammarCategory can return.
func GrammarCategories() []string {
	out := make([]string, 0, len(grammarTopics)+1)
	for _, t := range grammarTopics {
		out = append(out, t.name)
	}
	return append(out, General)
}

// CountQuotes counts straight and curly double quotes.
func CountQuotes(s string) int {
	return strings.Count(s, `"`) + strings.Count(s, "“") + strings.Count(s, "”")
}
