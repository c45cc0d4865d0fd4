// Package watch polls a materials tree, detects changes, debounces them and
// runs an action. The CLI uses it to re-run the pipeline when documents are
// added, edited or removed.
//
// Typical usage:
//
//	w := watch.New(watch.DirFingerprint("materials"), watch.Options{Interval: 2 * time.Second, Debounce: time.Second})
//	w.OnChange(ctx, func(ctx context.Context) error { return rerun(ctx) })
package watch

import (
	"context"
	"encoding/binary"
	"errors"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"
)

// Detector returns a version token. Two calls that return different
// values mean something changed.
type Detector func(ctx context.Context) (int64, error)

// Options tunes the watcher.
type Options struct {
	// Interval is the polling frequency. Default: 2s.
	Interval time.Duration
	// Debounce is the quiet period after a change before the action fires.
	// Further changes during the window restart it. 0 fires immediately.
	Debounce time.Duration
	Logger   *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = 2 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher runs an action whenever its detector reports a new version.
type Watcher struct {
	detect Detector
	opts   Options

	version atomic.Int64

	checks   atomic.Int64
	changes  atomic.Int64
	errors   atomic.Int64
	reloads  atomic.Int64
	reloadNs atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64         `json:"checks"`
	ChangesDetected int64         `json:"changes_detected"`
	Errors          int64         `json:"errors"`
	Reloads         int64         `json:"reloads"`
	AvgReloadTime   time.Duration `json:"avg_reload_time"`
}

// New creates a Watcher. Call OnChange to start the loop.
func New(detect Detector, opts Options) *Watcher {
	opts.defaults()
	return &Watcher{detect: detect, opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	s := Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
	}
	if s.Reloads > 0 {
		s.AvgReloadTime = time.Duration(w.reloadNs.Load() / s.Reloads)
	}
	return s
}

// Version returns the last version the action succeeded for.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange blocks until ctx is cancelled. The version seen at start is
// the baseline; the action only runs for later changes. If the action
// fails the version is not advanced and the next poll retries it.
func (w *Watcher) OnChange(ctx context.Context, action func(context.Context) error) {
	log := w.opts.Logger

	if v, err := w.detect(ctx); err != nil {
		log.Warn("watch: initial check failed", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var (
		debounce   *time.Timer
		debounceCh <-chan time.Time
		pending    int64
		hasPending bool
	)

	log.Info("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			if debounce != nil {
				debounce.Stop()
			}
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.detect(ctx)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: check failed", "error", err)
				continue
			}
			if cur == w.version.Load() || (hasPending && cur == pending) {
				continue
			}
			w.changes.Add(1)
			pending, hasPending = cur, true
			if w.opts.Debounce <= 0 {
				w.fire(ctx, action, pending)
				hasPending = false
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.opts.Debounce)
			debounceCh = debounce.C
			log.Debug("watch: change detected, debouncing", "pending_version", cur)

		case <-debounceCh:
			debounceCh = nil
			if hasPending {
				w.fire(ctx, action, pending)
				hasPending = false
			}
		}
	}
}

func (w *Watcher) fire(ctx context.Context, action func(context.Context) error, ver int64) {
	log := w.opts.Logger
	log.Info("watch: change", "old_version", w.version.Load(), "new_version", ver)
	start := time.Now()
	if err := action(ctx); err != nil {
		w.errors.Add(1)
		log.Error("watch: action failed", "error", err, "version", ver)
		return
	}
	elapsed := time.Since(start)
	w.reloads.Add(1)
	w.reloadNs.Add(int64(elapsed))
	w.version.Store(ver)
	log.Info("watch: action complete", "version", ver, "duration", elapsed)
}

// DirFingerprint hashes the relative path, size and modification time of
// every regular file under root. A missing root hashes to 0.
func DirFingerprint(root string) Detector {
	return func(ctx context.Context) (int64, error) {
		h := fnv.New64a()
		var buf [16]byte
		n := 0
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return err
			}
			rel, _ := filepath.Rel(root, path)
			h.Write([]byte(rel))
			binary.LittleEndian.PutUint64(buf[:8], uint64(info.Size()))
			binary.LittleEndian.PutUint64(buf[8:], uint64(info.ModTime().UnixNano()))
			h.Write(buf[:])
			n++
			return nil
		})
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, nil
		}
		return int64(h.Sum64()), nil
	}
}
