package corpus

import "log/slog"

// Result is the per-document output of classification.
type Result map[Kind]map[string]Record

// Len is the total record count of the result.
func (r Result) Len() int {
	n := 0
	for _, m := range r {
		n += len(m)
	}
	return n
}

// Conflict records a natural key collision resolved by last-write-wins.
type Conflict struct {
	Kind     Kind   `json:"kind"`
	Key      string `json:"key"`
	Previous string `json:"previous_source"`
	Current  string `json:"current_source"`
}

// Aggregator merges per-document results into one LevelCorpus. Later
// merges replace earlier records with the same key; callers must merge in
// a fixed order (the pipeline sorts by filename) to keep output stable.
//
// Collisions are kept as Conflicts and logged at WARN so that silently
// replaced records can be audited.
type Aggregator struct {
	corpus    *LevelCorpus
	conflicts []Conflict
	logger    *slog.Logger
}

// NewAggregator returns an Aggregator for level. A nil logger disables
// the conflict diagnostics log; conflicts are still recorded.
func NewAggregator(level string, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		corpus: New(level),
		logger: logger,
	}
}

// Merge folds one document's result into the corpus.
func (a *Aggregator) Merge(source string, res Result) {
	for _, k := range Kinds {
		m := res[k]
		if len(m) == 0 {
			continue
		}
		for _, key := range sortedKeys(m) {
			prev, replaced := a.corpus.Put(k, key, m[key])
			if !replaced {
				continue
			}
			c := Conflict{Kind: k, Key: key, Previous: prev.Source(), Current: source}
			a.conflicts = append(a.conflicts, c)
			if a.logger != nil {
				a.logger.Warn("corpus: natural key overwritten",
					"kind", k, "key", key,
					"previous_source", c.Previous, "current_source", c.Current)
			}
		}
	}
}

// Corpus returns the merged corpus. The Aggregator must not be used for
// further merges once the corpus has been handed to validation or export.
func (a *Aggregator) Corpus() *LevelCorpus { return a.corpus }

// Conflicts returns every key collision seen so far, in merge order.
func (a *Aggregator) Conflicts() []Conflict {
	out := make([]Conflict, len(a.conflicts))
	copy(out, a.conflicts)
	return out
}
