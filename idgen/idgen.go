// Package idgen provides pluggable ID generation.
//
// Components that stamp identifiers take a Generator, so tests can swap in
// a fixed sequence while production uses time-sortable UUID v7.
package idgen

import (
	"strconv"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator yielding prefix1, prefix2, ... for
// reproducible output in tests.
func Sequence(prefix string) Generator {
	n := 0
	return func() string {
		n++
		return prefix + strconv.Itoa(n)
	}
}

// RunID stamps one pipeline run: "run_" followed by a UUID v7.
var RunID Generator = Prefixed("run_", UUIDv7())
