package runlog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hazyhaar/cefrpipe/dbopen"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(dbopen.OpenMemory(t, dbopen.WithSchema(Schema)), nil)
}

func TestRecordAndHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	score := 61.7

	entries := []*Entry{
		{RunID: "run_1", Level: "B1", StartedAt: base, Items: 3, Formats: []string{"json"}, QualityScore: &score},
		{RunID: "run_2", Level: "A1", StartedAt: base.Add(time.Minute), Status: StatusError, Error: "output not writable"},
		{RunID: "run_3", Level: "B1", StartedAt: base.Add(2 * time.Minute), Items: 4, Conflicts: 1},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.History(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].RunID != "run_3" || all[2].RunID != "run_1" {
		t.Fatalf("history order = %v", ids(all))
	}

	b1, err := s.History(ctx, Filter{Level: "b1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(b1) != 2 {
		t.Fatalf("B1 history = %v", ids(b1))
	}
	first := b1[1]
	if first.QualityScore == nil || *first.QualityScore != 61.7 {
		t.Errorf("quality_score = %v", first.QualityScore)
	}
	if len(first.Formats) != 1 || first.Formats[0] != "json" || first.Status != StatusSuccess {
		t.Errorf("entry = %+v", first)
	}
	if !first.StartedAt.Equal(base) {
		t.Errorf("started_at = %v", first.StartedAt)
	}
	if b1[0].QualityScore != nil || len(b1[0].Formats) != 0 {
		t.Errorf("entry without validation = %+v", b1[0])
	}

	failed, err := s.History(ctx, Filter{Status: StatusError})
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].Error != "output not writable" {
		t.Fatalf("failed = %+v", failed)
	}

	limited, err := s.History(ctx, Filter{Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit ignored: %v", ids(limited))
	}
}

func TestRecord_ReplacesSameRunID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	e := &Entry{RunID: "run_x", Level: "C1", StartedAt: time.Now(), Items: 1}
	if err := s.Record(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Items = 9
	if err := s.Record(ctx, e); err != nil {
		t.Fatal(err)
	}
	got, err := s.History(ctx, Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Items != 9 {
		t.Fatalf("history = %+v", got)
	}
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	s, err := Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if err := s.Record(context.Background(), &Entry{RunID: "run_f", Level: "A2", StartedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatal(err)
	}
	if mode != "wal" {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func ids(es []*Entry) []string {
	out := make([]string, len(es))
	for i, e := range es {
		out[i] = e.RunID
	}
	return out
}
