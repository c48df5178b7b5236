package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rawwerks/cass/internal/config"
	"github.com/rawwerks/cass/internal/embedding"
	"github.com/rawwerks/cass/internal/ftsindex"
	"github.com/rawwerks/cass/internal/orchestrator"
	"github.com/rawwerks/cass/internal/outcome"
	"github.com/rawwerks/cass/internal/store"
)

var (
	idxFull         bool
	idxWatch        bool
	idxWatchOnce    []string
	idxForceRebuild bool
	idxIdempotency  string
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Scan all detected connectors and update the store and FTS index",
	RunE:  runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&idxFull, "full", false, "truncate and re-ingest everything from scratch")
	indexCmd.Flags().BoolVar(&idxWatch, "watch", false, "after the initial run, keep watching connector roots for changes")
	indexCmd.Flags().StringSliceVar(&idxWatchOnce, "watch-once", nil, "run one incremental pass over every detected connector root, then exit; the listed paths do not narrow the scan")
	indexCmd.Flags().BoolVar(&idxForceRebuild, "force-rebuild", false, "discard the on-disk store and index directories before indexing")
	indexCmd.Flags().StringVar(&idxIdempotency, "idempotency-key", "", "replay the cached report for this key if it was produced within the last 24h")
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	cfg, err := config.Load(resolvedDataDir())
	if err != nil {
		return outcome.Wrap(outcome.KindUnknown, "check the data directory is writable", err)
	}
	layout := config.Layout(cfg.DataDir)

	if cached, ok := loadIdempotentReport(layout.Root, idxIdempotency); ok {
		return emitIndexResult(cached)
	}

	for _, dir := range []string{layout.Root, layout.RemotesDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return outcome.Wrap(outcome.KindHealthFail, "check the data directory is writable", err)
		}
	}

	if idxForceRebuild {
		for _, p := range []string{layout.DBPath, layout.IndexDir, layout.VectorDir} {
			if err := os.RemoveAll(p); err != nil {
				return outcome.Wrap(outcome.KindUnknown, "check file permissions under the data directory", err)
			}
		}
	}

	lock, err := acquireIndexerLock(layout)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.Open(layout.DBPath)
	if err != nil {
		return outcome.Wrap(outcome.KindDataCorrupt, "run `cass doctor --fix --force-rebuild`", err)
	}
	defer st.Close()

	fts, _, err := ftsindex.Open(layout.IndexDir)
	if err != nil {
		return outcome.Wrap(outcome.KindDataCorrupt, "run `cass doctor --fix --force-rebuild`", err)
	}
	defer fts.Close()

	connectors := orchestrator.DefaultConnectors(nil)
	orc := orchestrator.New(cfg, layout, st, fts, connectors, 0)

	ws, err := orchestrator.LoadWatchState(layout.WatchStatePath)
	if err != nil {
		return outcome.Wrap(outcome.KindUnknown, "delete watch_state.json to reset incremental state", err)
	}

	var report *orchestrator.Report
	switch {
	case idxFull:
		report, err = orc.RunFull(ctx)
	default:
		// --watch-once's root restriction isn't separately modeled by the
		// orchestrator's connector-slug-scoped Watch/runSubset API, so it
		// runs the same incremental pass as the bare default; each
		// connector still only scans its own detected roots.
		report, err = orc.RunIncremental(ctx, ws)
	}
	if err != nil {
		return outcome.Wrap(outcome.KindUnknown, "re-run with --verbose for detail", err)
	}

	if err := rebuildVectorIndex(ctx, cfg, layout, st); err != nil {
		logger.Sugar().Warnf("semantic index not rebuilt: %v", err)
	}

	if err := saveIdempotentReport(layout.Root, idxIdempotency, report); err != nil {
		logger.Sugar().Warnf("failed to persist idempotency record: %v", err)
	}

	if idxWatch {
		fmt.Printf("initial pass: %d discovered, %d persisted, %d indexed\n", report.Discovered, report.Persisted, report.Indexed)
		fmt.Println("watching for changes (ctrl-C to stop)...")
		return orc.Watch(ctx, ws, func(r *orchestrator.Report) {
			fmt.Printf("[%s] +%d discovered, +%d persisted, +%d indexed\n", time.Now().Format(time.RFC3339), r.Discovered, r.Persisted, r.Indexed)
		})
	}

	return emitIndexResult(report)
}

func emitIndexResult(r *orchestrator.Report) error {
	if flagJSON {
		return writeEnvelope(indexReportEnvelope(r), formatJSON)
	}
	printIndexReport(r)
	if r.Partial() {
		return outcome.Partial("indexing completed with %d warning(s) and %d error(s)", len(r.Warnings), len(r.Errors))
	}
	return nil
}

func indexReportEnvelope(r *orchestrator.Report) outcome.Envelope {
	meta := outcome.Meta{RequestID: "idx-" + uuid.NewString()}
	var errOut *outcome.Outcome
	if r.Partial() {
		errOut = outcome.Partial("indexing completed with %d warning(s) and %d error(s)", len(r.Warnings), len(r.Errors))
	}
	return outcome.Envelope{Meta: meta, Error: errOut}
}

// rebuildVectorIndex re-embeds the full store and writes a fresh .cvvi file
// whenever the configured embedder has a working implementation (minilm
// does not, per internal/embedding, and is skipped with a warning rather
// than failing the whole index run).
func rebuildVectorIndex(ctx context.Context, cfg config.Config, layout config.DataLayout, st *store.Store) error {
	emb, err := embedding.New(string(cfg.SemanticEmbedder))
	if err != nil {
		return err
	}
	if err := os.MkdirAll(layout.VectorDir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(layout.VectorDir, fmt.Sprintf("index-%s-%d.cvvi", cfg.SemanticEmbedder, emb.Dimension()))
	n, err := orchestrator.BuildVectorIndex(ctx, st, emb, path)
	if err != nil {
		return err
	}
	logger.Sugar().Infof("semantic index rebuilt: %d entries at %s", n, path)
	return nil
}

func printIndexReport(r *orchestrator.Report) {
	fmt.Printf("discovered: %d\n", r.Discovered)
	fmt.Printf("persisted:  %d\n", r.Persisted)
	fmt.Printf("indexed:    %d\n", r.Indexed)
	if len(r.Warnings) > 0 {
		fmt.Printf("warnings:   %d\n", len(r.Warnings))
	}
	if len(r.Errors) > 0 {
		fmt.Printf("errors:     %d\n", len(r.Errors))
	}
}
