package query

import (
	"context"
	"sync"
	"time"

	"github.com/rawwerks/cass/internal/logging"
)

// WarmWorker re-runs a small set of representative queries once the index
// has been idle for config.WarmDebounce, so the bleve segment files and the
// result cache are both warm before the next interactive search lands
// (spec.md §4.G). It mirrors the debounce-timer idiom ftsindex.Index uses
// for reader reloads.
type WarmWorker struct {
	planner *Planner
	debounce time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewWarmWorker builds a worker bound to planner with the given idle
// debounce (config.Config.WarmDebounce).
func NewWarmWorker(planner *Planner, debounce time.Duration) *WarmWorker {
	return &WarmWorker{planner: planner, debounce: debounce}
}

// NotifyActivity resets the idle timer; call this after every ingest write
// or search so warming only fires once things go quiet.
func (w *WarmWorker) NotifyActivity(queries []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.warm(queries)
	})
}

func (w *WarmWorker) warm(queries []string) {
	log := logging.Get(logging.CategoryQuery)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for _, q := range queries {
		if q == "" {
			continue
		}
		if _, err := w.planner.Search(ctx, Request{Query: q, Mode: ModeBalanced, Size: 10}); err != nil {
			log.Debug("warm query %q failed: %v", q, err)
			continue
		}
	}
	log.Debug("warm worker refreshed %d queries", len(queries))
}

// Stop cancels any pending warm run.
func (w *WarmWorker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
