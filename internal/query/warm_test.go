package query

import (
	"context"
	"testing"
	"time"
)

func TestWarmWorkerDoesNotPanicWithNoQueries(t *testing.T) {
	p, _ := newTestPlanner(t)
	w := NewWarmWorker(p, 10*time.Millisecond)
	w.NotifyActivity(nil)
	time.Sleep(30 * time.Millisecond)
	w.Stop()
}

func TestWarmWorkerRunsSeedQueries(t *testing.T) {
	p, idx := newTestPlanner(t)
	seedDocs(t, idx)
	w := NewWarmWorker(p, 10*time.Millisecond)
	w.NotifyActivity([]string{"optimizer"})
	time.Sleep(40 * time.Millisecond)
	w.Stop()

	env, err := p.Search(context.Background(), Request{Query: "optimizer", Mode: ModeBalanced})
	if err != nil {
		t.Fatalf("search after warm: %v", err)
	}
	if !env.Meta.CacheHit {
		t.Fatalf("expected warm worker to have pre-populated cache")
	}
}
