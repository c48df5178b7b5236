package main

import (
	"context"
	"os"
	"time"

	"github.com/rawwerks/cass/internal/config"
	"github.com/rawwerks/cass/internal/ftsindex"
	"github.com/rawwerks/cass/internal/orchestrator"
	"github.com/rawwerks/cass/internal/outcome"
	"github.com/rawwerks/cass/internal/query"
	"github.com/rawwerks/cass/internal/store"
)

// resolvedDataDir applies the --data-dir flag over config's own
// CASS_DATA_DIR/platform-default resolution.
func resolvedDataDir() string {
	if flagDataDir != "" {
		return flagDataDir
	}
	if v := os.Getenv("CASS_DATA_DIR"); v != "" {
		return v
	}
	return config.DefaultDataDir()
}

// openSession loads config, ensures the data directory tree exists, and
// opens the store and FTS index that `search` queries (`health` keeps its
// own ultra-light path for the <50ms probe requirement).
func openSession() (config.Config, config.DataLayout, *store.Store, *ftsindex.Index, error) {
	cfg, err := config.Load(resolvedDataDir())
	if err != nil {
		return config.Config{}, config.DataLayout{}, nil, nil, outcome.Wrap(outcome.KindUnknown, "check the data directory is writable", err)
	}
	layout := config.Layout(cfg.DataDir)

	for _, dir := range []string{layout.Root, layout.RemotesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return config.Config{}, config.DataLayout{}, nil, nil, outcome.Wrap(outcome.KindHealthFail, "check the data directory is writable", err)
		}
	}

	st, err := store.Open(layout.DBPath)
	if err != nil {
		if rebuildErr, ok := asIncompatible(err); ok {
			res, rerr := store.RebuildIncompatible(layout.DBPath)
			if rerr != nil {
				return config.Config{}, config.DataLayout{}, nil, nil, outcome.Wrap(outcome.KindDataCorrupt, "run `cass doctor --fix --force-rebuild`", rerr)
			}
			logger.Sugar().Warnf("store schema incompatible, backed up to %s: %v", res.BackupPath, rebuildErr)
			st, err = store.Open(layout.DBPath)
		}
		if err != nil {
			return config.Config{}, config.DataLayout{}, nil, nil, outcome.Wrap(outcome.KindDataCorrupt, "run `cass doctor --fix --force-rebuild`", err)
		}
	}

	fts, _, err := ftsindex.Open(layout.IndexDir)
	if err != nil {
		st.Close()
		return config.Config{}, config.DataLayout{}, nil, nil, outcome.Wrap(outcome.KindDataCorrupt, "run `cass doctor --fix --force-rebuild`", err)
	}

	return cfg, layout, st, fts, nil
}

func asIncompatible(err error) (*store.ErrIncompatibleVersion, bool) {
	e, ok := err.(*store.ErrIncompatibleVersion)
	return e, ok
}

// openPlanner builds a query.Planner over a freshly opened session,
// returning a closer the caller must invoke when done.
func openPlanner() (*query.Planner, func(), error) {
	_, _, st, fts, err := openSession()
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		fts.Close()
		st.Close()
	}
	return query.NewPlanner(fts), closeFn, nil
}

// withTimeout applies the global --timeout flag (if set) to ctx.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if flagTimeout == "" {
		return ctx, func() {}
	}
	d, err := time.ParseDuration(flagTimeout)
	if err != nil {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

func acquireIndexerLock(layout config.DataLayout) (*orchestrator.Lock, error) {
	return orchestrator.AcquireLock(layout.LockPath)
}
