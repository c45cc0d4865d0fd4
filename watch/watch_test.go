package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDirFingerprint(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()
	det := DirFingerprint(root)

	empty, err := det(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if empty != 0 {
		t.Fatalf("empty dir = %d, want 0", empty)
	}

	path := filepath.Join(root, "B1", "vocabulary.txt")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("restaurant - a place where you can eat"), 0o644); err != nil {
		t.Fatal(err)
	}
	v1, err := det(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if v1 == 0 {
		t.Fatal("fingerprint did not change after adding a file")
	}
	again, _ := det(ctx)
	if again != v1 {
		t.Fatal("fingerprint is not stable")
	}

	if err := os.WriteFile(path, []byte("restaurant - a place to eat"), 0o644); err != nil {
		t.Fatal(err)
	}
	v2, _ := det(ctx)
	if v2 == v1 {
		t.Fatal("fingerprint did not change after editing a file")
	}
}

func TestDirFingerprint_MissingRoot(t *testing.T) {
	v, err := DirFingerprint(filepath.Join(t.TempDir(), "nope"))(context.Background())
	if err != nil || v != 0 {
		t.Fatalf("v=%d err=%v", v, err)
	}
}

// counter is a Detector whose version is set by the test.
type counter struct{ v atomic.Int64 }

func (c *counter) detect(context.Context) (int64, error) { return c.v.Load(), nil }

func TestOnChange_FiresOnChange(t *testing.T) {
	c := &counter{}
	w := New(c.detect, Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fired := make(chan struct{}, 10)
	go w.OnChange(ctx, func(context.Context) error {
		fired <- struct{}{}
		return nil
	})

	time.Sleep(30 * time.Millisecond)
	select {
	case <-fired:
		t.Fatal("action must not fire without a change")
	default:
	}

	c.v.Store(7)
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("action did not fire")
	}
	time.Sleep(30 * time.Millisecond)
	if w.Version() != 7 {
		t.Fatalf("version = %d", w.Version())
	}
	if s := w.Stats(); s.Reloads != 1 || s.ChangesDetected != 1 || s.Checks == 0 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestOnChange_Debounce(t *testing.T) {
	c := &counter{}
	w := New(c.detect, Options{Interval: 5 * time.Millisecond, Debounce: 100 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int64
	go w.OnChange(ctx, func(context.Context) error {
		calls.Add(1)
		return nil
	})

	time.Sleep(20 * time.Millisecond)
	for i := int64(1); i <= 3; i++ {
		c.v.Store(i)
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(300 * time.Millisecond)

	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1 after a burst of changes", n)
	}
	if w.Version() != 3 {
		t.Fatalf("version = %d, want 3", w.Version())
	}
}

func TestOnChange_RetriesFailedAction(t *testing.T) {
	c := &counter{}
	w := New(c.detect, Options{Interval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var calls atomic.Int64
	done := make(chan struct{})
	go func() {
		w.OnChange(ctx, func(context.Context) error {
			if calls.Add(1) == 1 {
				return errors.New("boom")
			}
			return nil
		})
		close(done)
	}()

	c.v.Store(1)
	deadline := time.After(2 * time.Second)
	for w.Version() != 1 {
		select {
		case <-deadline:
			t.Fatalf("version never advanced, calls = %d", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	if calls.Load() < 2 {
		t.Fatalf("calls = %d, want a retry", calls.Load())
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("OnChange did not return after cancel")
	}
}
