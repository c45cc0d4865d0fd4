package corpus

// Record is one structured unit of learning content.
type Record interface {
	Kind() Kind
	// Fields returns name/value pairs in Columns(Kind()) order.
	Fields() []Field
	// Source is the document the record was extracted from.
	Source() string
}

// Field is a named record value.
type Field struct {
	Name  string
	Value any
}

// Question is a comprehension or discussion prompt attached to a record.
type Question struct {
	Question string `json:"question"`
	Type     string `json:"type"`
}

// Vocabulary is a word or phrasal verb with its definition.
type Vocabulary struct {
	Word           string   `json:"word"`
	DefinitionEN   string   `json:"definition_en"`
	DefinitionPT   string   `json:"definition_pt"`
	Level          string   `json:"level"`
	Category       string   `json:"category"`
	Examples       []string `json:"examples"`
	Phonetic       string   `json:"phonetic"`
	PartOfSpeech   string   `json:"part_of_speech"`
	IsPhrasalVerb  bool     `json:"is_phrasal_verb"`
	SourceDocument string   `json:"source_document"`
	Context        string   `json:"context"`
}

func (v *Vocabulary) Kind() Kind     { return KindVocabulary }
func (v *Vocabulary) Source() string { return v.SourceDocument }

func (v *Vocabulary) Fields() []Field {
	return []Field{
		{"word", v.Word},
		{"definition_en", v.DefinitionEN},
		{"definition_pt", v.DefinitionPT},
		{"level", v.Level},
		{"category", v.Category},
		{"examples", nonNil(v.Examples)},
		{"phonetic", v.Phonetic},
		{"part_of_speech", v.PartOfSpeech},
		{"is_phrasal_verb", v.IsPhrasalVerb},
		{"source_document", v.SourceDocument},
		{"context", v.Context},
	}
}

// Grammar is a rule section with its examples and exercises.
type Grammar struct {
	RuleName       string   `json:"rule_name"`
	Category       string   `json:"category"`
	Level          string   `json:"level"`
	Description    string   `json:"description"`
	Examples       []string `json:"examples"`
	Rules          []string `json:"rules"`
	Exercises      []string `json:"exercises"`
	SourceDocument string   `json:"source_document"`
	Context        string   `json:"context"`
}

func (g *Grammar) Kind() Kind     { return KindGrammar }
func (g *Grammar) Source() string { return g.SourceDocument }

func (g *Grammar) Fields() []Field {
	return []Field{
		{"rule_name", g.RuleName},
		{"category", g.Category},
		{"level", g.Level},
		{"description", g.Description},
		{"examples", nonNil(g.Examples)},
		{"rules", nonNil(g.Rules)},
		{"exercises", nonNil(g.Exercises)},
		{"source_document", g.SourceDocument},
		{"context", g.Context},
	}
}

// Reading is a comprehension passage.
type Reading struct {
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	WordCount      int        `json:"word_count"`
	Level          string     `json:"level"`
	Category       string     `json:"category"`
	Difficulty     string     `json:"difficulty"`
	SourceDocument string     `json:"source_document"`
	Questions      []Question `json:"questions"`
}

func (r *Reading) Kind() Kind     { return KindReading }
func (r *Reading) Source() string { return r.SourceDocument }

func (r *Reading) Fields() []Field {
	return []Field{
		{"title", r.Title},
		{"content", r.Content},
		{"word_count", r.WordCount},
		{"level", r.Level},
		{"category", r.Category},
		{"difficulty", r.Difficulty},
		{"source_document", r.SourceDocument},
		{"questions", nonNilQ(r.Questions)},
	}
}

// Listening is a dialogue or spoken passage.
type Listening struct {
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Type           string     `json:"type"`
	Level          string     `json:"level"`
	Category       string     `json:"category"`
	Difficulty     string     `json:"difficulty"`
	SourceDocument string     `json:"source_document"`
	Questions      []Question `json:"questions"`
}

func (l *Listening) Kind() Kind     { return KindListening }
func (l *Listening) Source() string { return l.SourceDocument }

func (l *Listening) Fields() []Field {
	return []Field{
		{"title", l.Title},
		{"content", l.Content},
		{"type", l.Type},
		{"level", l.Level},
		{"category", l.Category},
		{"difficulty", l.Difficulty},
		{"source_document", l.SourceDocument},
		{"questions", nonNilQ(l.Questions)},
	}
}

// Writing is a writing task prompt.
type Writing struct {
	Title          string   `json:"title"`
	Prompt         string   `json:"prompt"`
	Type           string   `json:"type"`
	Level          string   `json:"level"`
	Category       string   `json:"category"`
	WordLimit      string   `json:"word_limit"`
	SourceDocument string   `json:"source_document"`
	Suggestions    []string `json:"suggestions"`
}

func (w *Writing) Kind() Kind     { return KindWriting }
func (w *Writing) Source() string { return w.SourceDocument }

func (w *Writing) Fields() []Field {
	return []Field{
		{"title", w.Title},
		{"prompt", w.Prompt},
		{"type", w.Type},
		{"level", w.Level},
		{"category", w.Category},
		{"word_limit", w.WordLimit},
		{"source_document", w.SourceDocument},
		{"suggestions", nonNil(w.Suggestions)},
	}
}

// Speaking is a conversation topic.
type Speaking struct {
	Title          string     `json:"title"`
	Topic          string     `json:"topic"`
	Type           string     `json:"type"`
	Level          string     `json:"level"`
	Category       string     `json:"category"`
	Difficulty     string     `json:"difficulty"`
	SourceDocument string     `json:"source_document"`
	Questions      []Question `json:"questions"`
}

func (s *Speaking) Kind() Kind     { return KindSpeaking }
func (s *Speaking) Source() string { return s.SourceDocument }

func (s *Speaking) Fields() []Field {
	return []Field{
		{"title", s.Title},
		{"topic", s.Topic},
		{"type", s.Type},
		{"level", s.Level},
		{"category", s.Category},
		{"difficulty", s.Difficulty},
		{"source_document", s.SourceDocument},
		{"questions", nonNilQ(s.Questions)},
	}
}

// Value returns the named field of r, or nil when r has no such field.
func Value(r Record, name string) any {
	for _, f := range r.Fields() {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

// nonNil keeps empty lists as [] rather than null in every output.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nonNilQ(q []Question) []Question {
	if q == nil {
		return []Question{}
	}
	return q
}
