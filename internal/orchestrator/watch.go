package orchestrator

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rawwerks/cass/internal/logging"
)

// watchDebounce and watchForcedFlush follow spec.md §4.F: bursts are
// debounced ~2s, with a forced flush every 5s regardless of quiet time, so a
// steady trickle of events can't starve ingest indefinitely.
const (
	watchDebounce    = 2 * time.Second
	watchForcedFlush = 5 * time.Second
)

// Watch subscribes to filesystem events on every detected connector root and
// reruns incremental ingest restricted to the connectors whose roots saw
// activity, following the teacher's fsnotify watch-loop idiom
// (internal/core/mangle_watcher.go's debounce-map-plus-ticker pattern)
// generalized from one directory to many connector roots at once.
func (o *Orchestrator) Watch(ctx context.Context, ws *WatchState, onReport func(*Report)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	rootToSlug := make(map[string]string)
	for _, c := range o.connectors {
		det := c.Detect()
		if !det.Present {
			continue
		}
		for _, root := range det.ScanRoots {
			if err := watcher.Add(root); err != nil {
				logging.Get(logging.CategoryOrchestrator).Warn("watch: failed to add root %s for %s: %v", root, c.Slug(), err)
				continue
			}
			rootToSlug[root] = c.Slug()
		}
	}

	var mu sync.Mutex
	dirty := make(map[string]bool) // slug -> touched since last flush
	lastEvent := time.Time{}

	debounceTicker := time.NewTicker(250 * time.Millisecond)
	defer debounceTicker.Stop()
	forceTicker := time.NewTicker(watchForcedFlush)
	defer forceTicker.Stop()

	flush := func() {
		mu.Lock()
		if len(dirty) == 0 {
			mu.Unlock()
			return
		}
		slugs := make([]string, 0, len(dirty))
		for s := range dirty {
			slugs = append(slugs, s)
		}
		dirty = make(map[string]bool)
		mu.Unlock()

		logging.Get(logging.CategoryOrchestrator).Info("watch: flushing incremental ingest for %v", slugs)
		report, err := o.runSubset(ctx, ws, slugs)
		if err != nil {
			logging.Get(logging.CategoryOrchestrator).Error("watch: incremental ingest failed: %v", err)
		}
		if onReport != nil && report != nil {
			onReport(report)
		}
		if err := ws.Save(); err != nil {
			logging.Get(logging.CategoryOrchestrator).Error("watch: failed to save watch state: %v", err)
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			dir := filepath.Dir(ev.Name)
			slug, known := rootToSlug[dir]
			if !known {
				// fall back to matching against the configured roots themselves,
				// since some agents nest files under per-session subdirectories.
				for root, s := range rootToSlug {
					if filepathHasPrefix(ev.Name, root) {
						slug, known = s, true
						break
					}
				}
			}
			if !known {
				continue
			}
			mu.Lock()
			dirty[slug] = true
			lastEvent = time.Now()
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Get(logging.CategoryOrchestrator).Error("watch: fsnotify error: %v", err)

		case <-debounceTicker.C:
			mu.Lock()
			quiet := !lastEvent.IsZero() && time.Since(lastEvent) >= watchDebounce
			mu.Unlock()
			if quiet {
				flush()
			}

		case <-forceTicker.C:
			flush()
		}
	}
}

func filepathHasPrefix(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

// runSubset runs incremental ingest limited to the given connector slugs.
// Every root of those connectors is rescanned from its high-water mark; the
// scan is not narrowed to the files that changed.
func (o *Orchestrator) runSubset(ctx context.Context, ws *WatchState, slugs []string) (*Report, error) {
	want := make(map[string]bool, len(slugs))
	for _, s := range slugs {
		want[s] = true
	}

	full := o.connectors
	defer func() { o.connectors = full }()

	filtered := full[:0:0]
	for _, c := range full {
		if want[c.Slug()] {
			filtered = append(filtered, c)
		}
	}
	o.connectors = filtered

	return o.RunIncremental(ctx, ws)
}
