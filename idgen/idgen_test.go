package idgen

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestUUIDv7_Format(t *testing.T) {
	id := UUIDv7()()
	u, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("UUIDv7: %q does not parse: %v", id, err)
	}
	if u.Version() != 7 {
		t.Fatalf("UUIDv7: version = %d", u.Version())
	}
}

func TestUUIDv7_Uniqueness(t *testing.T) {
	gen := UUIDv7()
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id := gen()
		if _, ok := seen[id]; ok {
			t.Fatalf("UUIDv7: duplicate at iteration %d", i)
		}
		seen[id] = struct{}{}
	}
}

func TestPrefixed(t *testing.T) {
	gen := Prefixed("doc_", Sequence(""))
	if id := gen(); id != "doc_1" {
		t.Fatalf("Prefixed: got %q", id)
	}
}

func TestSequence(t *testing.T) {
	gen := Sequence("run_")
	for _, want := range []string{"run_1", "run_2", "run_3"} {
		if got := gen(); got != want {
			t.Fatalf("Sequence: got %q, want %q", got, want)
		}
	}
}

func TestRunID(t *testing.T) {
	id := RunID()
	if !strings.HasPrefix(id, "run_") {
		t.Fatalf("RunID: missing prefix in %q", id)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(id, "run_")); err != nil {
		t.Fatalf("RunID: suffix is not a UUID: %v", err)
	}
}
