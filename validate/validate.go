// Package validate scores a LevelCorpus with per-kind quality rules. The
// result is advisory: it never changes the corpus and never blocks export.
package validate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/hazyhaar/cefrpipe/corpus"
)

// categoryItemID labels issues that concern a whole category.
const categoryItemID = "category_general"

// Config holds the thresholds. Zero values take the defaults below.
type Config struct {
	MinWordLength        int // default 2
	MinDefinitionLength  int // default 10
	MinRuleNameLength    int // default 5
	MinDescriptionLength int // default 20
	MinReadingLength     int // default 50
	MinListeningLength   int // default 30
	MinPromptLength      int // default 20
	MinTopicLength       int // default 20

	// MinItems below which a category gets a warning (default 5).
	MinItems int

	// MaxIssuesPerItem caps the messages kept per item; 0 keeps all.
	MaxIssuesPerItem int

	// RequireExamples turns missing vocabulary examples into an issue.
	RequireExamples bool

	// MinQualityScore is the threshold reported in Summary.BelowThreshold.
	MinQualityScore float64

	Logger *slog.Logger
}

func (c *Config) defaults() {
	setDefault(&c.MinWordLength, 2)
	setDefault(&c.MinDefinitionLength, 10)
	setDefault(&c.MinRuleNameLength, 5)
	setDefault(&c.MinDescriptionLength, 20)
	setDefault(&c.MinReadingLength, 50)
	setDefault(&c.MinListeningLength, 30)
	setDefault(&c.MinPromptLength, 20)
	setDefault(&c.MinTopicLength, 20)
	setDefault(&c.MinItems, 5)
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func setDefault(p *int, v int) {
	if *p <= 0 {
		*p = v
	}
}

// ItemIssues groups the problems found on one record, or on the category
// as a whole when ItemID is "category_general".
type ItemIssues struct {
	ItemID   string   `json:"item_id"`
	Messages []string `json:"issues"`
}

// Report is the validation outcome of one kind.
type Report struct {
	Kind         corpus.Kind  `json:"category"`
	IsValid      bool         `json:"is_valid"`
	ItemCount    int          `json:"item_count"`
	ValidItems   int          `json:"valid_items"`
	InvalidItems int          `json:"invalid_items"`
	Issues       []ItemIssues `json:"issues"`
	Warnings     []string     `json:"warnings"`
	QualityScore float64      `json:"quality_score"`
}

// Reports maps each validated kind to its report. It marshals with
// storage names as keys.
type Reports map[corpus.Kind]*Report

func (r Reports) MarshalJSON() ([]byte, error) {
	out := make(map[string]*Report, len(r))
	for k, rep := range r {
		out[k.StorageName()] = rep
	}
	return json.Marshal(out)
}

// Validator applies the rule table to a corpus.
type Validator struct {
	cfg        Config
	logger     *slog.Logger
	rules      map[corpus.Kind]itemRule
	categories map[corpus.Kind][]string
}

// New creates a Validator.
func New(cfg Config) *Validator {
	cfg.defaults()
	return &Validator{
		cfg:        cfg,
		logger:     cfg.Logger,
		rules:      defaultRules(),
		categories: validCategories(),
	}
}

// Validate reports on every non-empty kind of c.
func (v *Validator) Validate(c *corpus.LevelCorpus) Reports {
	out := make(Reports)
	for _, k := range c.NonEmpty() {
		rule, ok := v.rules[k]
		if !ok {
			v.logger.Warn("validate: no rules for category", "level", c.Level, "category", k)
			n := c.Len(k)
			out[k] = &Report{
				Kind: k, IsValid: true, ItemCount: n, ValidItems: n,
				Issues:       []ItemIssues{},
				Warnings:     []string{"no validation rules defined"},
				QualityScore: 100,
			}
			continue
		}
		rep := v.category(c, k, rule)
		v.logger.Info("validate: category checked",
			"level", c.Level, "category", k, "items", rep.ItemCount,
			"issues", len(rep.Issues), "score", rep.QualityScore)
		out[k] = rep
	}
	return out
}

func (v *Validator) category(c *corpus.LevelCorpus, k corpus.Kind, rule itemRule) *Report {
	rep := &Report{Kind: k, ItemCount: c.Len(k), Issues: []ItemIssues{}, Warnings: []string{}}

	for _, key := range c.Keys(k) {
		r, _ := c.Get(k, key)
		msgs := rule(v, r)
		if len(msgs) == 0 {
			rep.ValidItems++
			continue
		}
		rep.InvalidItems++
		if v.cfg.MaxIssuesPerItem > 0 && len(msgs) > v.cfg.MaxIssuesPerItem {
			msgs = msgs[:v.cfg.MaxIssuesPerItem]
		}
		rep.Issues = append(rep.Issues, ItemIssues{ItemID: key, Messages: msgs})
	}

	if rep.ItemCount < v.cfg.MinItems {
		rep.Warnings = append(rep.Warnings,
			fmt.Sprintf("few items in category: %d (recommended: at least %d)", rep.ItemCount, v.cfg.MinItems))
	}
	if k == corpus.KindVocabulary {
		if dups := duplicateWords(c); len(dups) > 0 {
			if len(dups) > 5 {
				dups = dups[:5]
			}
			rep.Issues = append(rep.Issues, ItemIssues{
				ItemID:   categoryItemID,
				Messages: []string{"duplicate words found: " + strings.Join(dups, ", ")},
			})
		}
	}

	rep.IsValid = len(rep.Issues) == 0 && rep.ValidItems > 0
	rep.QualityScore = Score(rep.ValidItems, rep.ItemCount, len(rep.Issues))
	return rep
}

// duplicateWords finds lowercased words carried by more than one record.
// Keys are already lowercased words, so this only triggers when a word
// field disagrees with its key.
func duplicateWords(c *corpus.LevelCorpus) []string {
	seen := make(map[string]int)
	var dups []string
	for _, r := range c.Records(corpus.KindVocabulary) {
		w := strings.ToLower(r.(*corpus.Vocabulary).Word)
		seen[w]++
		if seen[w] == 2 {
			dups = append(dups, w)
		}
	}
	return dups
}

// Score is max(0, valid/total*100 - min(issues*5, 30)) rounded to one
// decimal, and 0 for an empty category.
func Score(valid, total, issues int) float64 {
	if total <= 0 {
		return 0
	}
	base := float64(valid) / float64(total) * 100
	penalty := math.Min(float64(issues)*5, 30)
	return round1(math.Max(base-penalty, 0))
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }

// Summary condenses the reports of one level.
type Summary struct {
	Level               string             `json:"level"`
	TotalCategories     int                `json:"total_categories"`
	ValidCategories     int                `json:"valid_categories"`
	TotalItems          int                `json:"total_items"`
	TotalIssues         int                `json:"total_issues"`
	OverallQualityScore float64            `json:"overall_quality_score"`
	CategoryScores      map[string]float64 `json:"category_scores"`
	MinQualityScore     float64            `json:"min_quality_score"`
	BelowThreshold      []string           `json:"below_threshold"`
}

// Summarize builds the level summary. The overall score is the mean of
// the category scores.
func (v *Validator) Summarize(level string, reports Reports) *Summary {
	s := &Summary{
		Level:           level,
		CategoryScores:  make(map[string]float64),
		MinQualityScore: v.cfg.MinQualityScore,
		BelowThreshold:  []string{},
	}
	var total float64
	for _, k := range corpus.Kinds {
		rep, ok := reports[k]
		if !ok {
			continue
		}
		s.TotalCategories++
		if rep.IsValid {
			s.ValidCategories++
		}
		s.TotalItems += rep.ItemCount
		s.TotalIssues += len(rep.Issues)
		s.CategoryScores[k.StorageName()] = rep.QualityScore
		total += rep.QualityScore
		if rep.QualityScore < v.cfg.MinQualityScore {
			s.BelowThreshold = append(s.BelowThreshold, k.StorageName())
			v.logger.Warn("validate: category below quality threshold",
				"level", level, "category", k, "score", rep.QualityScore, "threshold", v.cfg.MinQualityScore)
		}
	}
	if s.TotalCategories > 0 {
		s.OverallQualityScore = round1(total / float64(s.TotalCategories))
	}
	return s
}
