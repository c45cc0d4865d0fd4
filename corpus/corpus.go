package corpus

import (
	"bytes"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// LevelCorpus maps each kind to its records keyed by natural key, for one
// certification level. Keys are unique per kind.
type LevelCorpus struct {
	Level   string
	records map[Kind]map[string]Record
}

// New returns an empty corpus for level.
func New(level string) *LevelCorpus {
	return &LevelCorpus{
		Level:   level,
		records: make(map[Kind]map[string]Record),
	}
}

// Put stores r under key, returning the record it replaced, if any.
func (c *LevelCorpus) Put(k Kind, key string, r Record) (prev Record, replaced bool) {
	m := c.records[k]
	if m == nil {
		m = make(map[string]Record)
		c.records[k] = m
	}
	prev, replaced = m[key]
	m[key] = r
	return prev, replaced
}

// Get returns the record stored under key.
func (c *LevelCorpus) Get(k Kind, key string) (Record, bool) {
	r, ok := c.records[k][key]
	return r, ok
}

// Len is the number of records of kind k.
func (c *LevelCorpus) Len(k Kind) int { return len(c.records[k]) }

// Total is the number of records across all kinds.
func (c *LevelCorpus) Total() int {
	n := 0
	for _, m := range c.records {
		n += len(m)
	}
	return n
}

// Counts returns the record count for every kind, including empty ones.
func (c *LevelCorpus) Counts() map[Kind]int {
	out := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		out[k] = len(c.records[k])
	}
	return out
}

// NonEmpty returns the kinds holding at least one record, in canonical order.
func (c *LevelCorpus) NonEmpty() []Kind {
	var out []Kind
	for _, k := range Kinds {
		if len(c.records[k]) > 0 {
			out = append(out, k)
		}
	}
	return out
}

// Keys returns the natural keys of kind k in stable order. Ordinal keys
// like text_2 sort before text_10.
func (c *LevelCorpus) Keys(k Kind) []string { return sortedKeys(c.records[k]) }

func sortedKeys(m map[string]Record) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })
	return keys
}

// Records returns the records of kind k in Keys order.
func (c *LevelCorpus) Records(k Kind) []Record {
	keys := c.Keys(k)
	out := make([]Record, len(keys))
	for i, key := range keys {
		out[i] = c.records[k][key]
	}
	return out
}

// MarshalKind encodes the records of kind k as a JSON object keyed by
// natural key.
func (c *LevelCorpus) MarshalKind(k Kind) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range c.Keys(k) {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(key)
		buf.Write(kb)
		buf.WriteByte(':')
		rb, err := MarshalRecord(c.records[k][key])
		if err != nil {
			return nil, err
		}
		buf.Write(rb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalJSON encodes every kind under its storage name, empty kinds
// included.
func (c *LevelCorpus) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range Kinds {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(k.StorageName()))
		buf.WriteByte(':')
		kb, err := c.MarshalKind(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalRecord encodes r as a JSON object whose keys follow Columns order.
func MarshalRecord(r Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.Fields() {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(strconv.Quote(f.Name))
		buf.WriteByte(':')
		vb, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// lessKey orders keys by their non-numeric prefix, then by a trailing
// integer when both carry one.
func lessKey(a, b string) bool {
	pa, na, oka := splitOrdinal(a)
	pb, nb, okb := splitOrdinal(b)
	if oka && okb && pa == pb {
		return na < nb
	}
	return a < b
}

func splitOrdinal(s string) (string, int, bool) {
	i := strings.LastIndexByte(s, '_')
	if i < 0 || i == len(s)-1 {
		return s, 0, false
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return s, 0, false
	}
	return s[:i], n, true
}
