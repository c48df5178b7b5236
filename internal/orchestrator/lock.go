package orchestrator

import (
	"fmt"

	"github.com/gofrs/flock"

	"github.com/rawwerks/cass/internal/outcome"
)

// Lock excludes concurrent indexers from touching the same data directory
// (spec.md §4.F). It wraps a single advisory file lock at the data
// directory's indexer.lock path.
type Lock struct {
	flock *flock.Flock
}

// AcquireLock attempts a non-blocking lock at path, returning a
// *outcome.Outcome of KindBusy if another indexer already holds it.
func AcquireLock(path string) (*Lock, error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire indexer lock: %w", err)
	}
	if !ok {
		return nil, outcome.Busy("another indexer holds the lock at %s", path)
	}
	return &Lock{flock: fl}, nil
}

// Release unlocks and closes the underlying lock file.
func (l *Lock) Release() error {
	return l.flock.Unlock()
}
