package classify

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hazyhaar/cefrpipe/corpus"
	"github.com/hazyhaar/cefrpipe/docpipe"
)

const (
	minReadingLength  = 100
	minDialogueLength = 20
	minDialogueQuotes = 4

	// DefaultWordLimit is used when a prompt states no limit.
	DefaultWordLimit = "100 words"
)

var (
	writingKeywords  = []string{"write", "describe", "explain", "discuss", "compare"}
	speakingKeywords = []string{"talk about", "discuss", "describe", "opinion", "experience"}
	wordLimitRe      = regexp.MustCompile(`(\d+)\s*words?`)
)

// Static comprehension and discussion templates, two per record.
var (
	readingQuestions = []corpus.Question{
		{Question: "What is the main topic of this text?", Type: "main_idea"},
		{Question: "What are the key points mentioned?", Type: "key_points"},
	}
	listeningQuestions = []corpus.Question{
		{Question: "What is the conversation about?", Type: "topic"},
		{Question: "What are the speakers discussing?", Type: "discussion"},
	}
	speakingQuestions = []corpus.Question{
		{Question: "What is your opinion on this topic?", Type: "opinion"},
		{Question: "Can you share a related experience?", Type: "experience"},
	}
	writingSuggestions = []string{
		"Use clear topic sentences",
		"Include supporting details",
		"Use appropriate vocabulary",
		"Check grammar and spelling",
	}
)

// IsDialogue reports whether a paragraph reads as a dialogue.
func IsDialogue(p string) bool {
	return CountQuotes(p) >= minDialogueQuotes && utf8.RuneCountInString(p) > minDialogueLength
}

// IsWritingPrompt reports whether a paragraph asks the learner to write.
func IsWritingPrompt(p string) bool {
	return containsAny(strings.ToLower(p), writingKeywords)
}

// IsSpeakingTopic reports whether a paragraph invites discussion.
func IsSpeakingTopic(p string) bool {
	return containsAny(strings.ToLower(p), speakingKeywords)
}

// WordLimit extracts "<n> words" from a prompt, or DefaultWordLimit.
func WordLimit(p string) string {
	if m := wordLimitRe.FindStringSubmatch(strings.ToLower(p)); m != nil {
		return m[1] + " words"
	}
	return DefaultWordLimit
}

// Difficulty grades a passage by word count and average word length.
func Difficulty(text string) string {
	words := strings.Fields(text)
	var avg float64
	if len(words) > 0 {
		total := 0
		for _, w := range words {
			total += utf8.RuneCountInString(w)
		}
		avg = float64(total) / float64(len(words))
	}
	switch {
	case len(words) < 100 || avg < 4.5:
		return "easy"
	case len(words) < 300 || avg < 5.5:
		return "medium"
	default:
		return "hard"
	}
}

// Keys are "<prefix>_<n>" with n the 1-based paragraph index, so the same
// document always yields the same keys.
func ordinal(prefix string, i int) string { return fmt.Sprintf("%s_%d", prefix, i+1) }

func (c *Classifier) reading(doc *docpipe.Document) map[string]corpus.Record {
	out := make(map[string]corpus.Record)
	for i, p := range doc.Paragraphs {
		if utf8.RuneCountInString(p) <= minReadingLength {
			continue
		}
		out[ordinal("text", i)] = &corpus.Reading{
			Title:          fmt.Sprintf("Reading Text %d", i+1),
			Content:        p,
			WordCount:      len(strings.Fields(p)),
			Level:          c.cfg.Level,
			Category:       CategoryReading,
			Difficulty:     Difficulty(p),
			SourceDocument: doc.Filename,
			Questions:      cloneQuestions(readingQuestions),
		}
	}
	return out
}

func (c *Classifier) listening(doc *docpipe.Document) map[string]corpus.Record {
	out := make(map[string]corpus.Record)
	for i, p := range doc.Paragraphs {
		if !IsDialogue(p) {
			continue
		}
		out[ordinal("dialogue", i)] = &corpus.Listening{
			Title:          fmt.Sprintf("Listening Dialogue %d", i+1),
			Content:        p,
			Type:           "dialogue",
			Level:          c.cfg.Level,
			Category:       CategoryListening,
			Difficulty:     Difficulty(p),
			SourceDocument: doc.Filename,
			Questions:      cloneQuestions(listeningQuestions),
		}
	}
	return out
}

func (c *Classifier) writing(doc *docpipe.Document) map[string]corpus.Record {
	out := make(map[string]corpus.Record)
	for i, p := range doc.Paragraphs {
		if !IsWritingPrompt(p) {
			continue
		}
		out[ordinal("prompt", i)] = &corpus.Writing{
			Title:          fmt.Sprintf("Writing Prompt %d", i+1),
			Prompt:         p,
			Type:           "writing_task",
			Level:          c.cfg.Level,
			Category:       CategoryWriting,
			WordLimit:      WordLimit(p),
			SourceDocument: doc.Filename,
			Suggestions:    append([]string(nil), writingSuggestions...),
		}
	}
	return out
}

func (c *Classifier) speaking(doc *docpipe.Document) map[string]corpus.Record {
	out := make(map[string]corpus.Record)
	for i, p := range doc.Paragraphs {
		if !IsSpeakingTopic(p) {
			continue
		}
		out[ordinal("topic", i)] = &corpus.Speaking{
			Title:          fmt.Sprintf("Speaking Topic %d", i+1),
			Topic:          p,
			Type:           "conversation_topic",
			Level:          c.cfg.Level,
			Category:       CategorySpeaking,
			Difficulty:     "medium",
			SourceDocument: doc.Filename,
			Questions:      cloneQuestions(speakingQuestions),
		}
	}
	return out
}

func cloneQuestions(q []corpus.Question) []corpus.Question {
	return append([]corpus.Question(nil), q...)
}
