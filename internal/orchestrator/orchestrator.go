// Package orchestrator drives the full/incremental/watch indexing pipeline
// described in spec.md §4.F: connector detection and scanning on a worker
// pool, ingest serialized through a single writer into the relational store
// and FTS index, with bounded-channel backpressure and per-file/per-
// conversation failure isolation.
package orchestrator

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/rawwerks/cass/internal/config"
	"github.com/rawwerks/cass/internal/connector"
	"github.com/rawwerks/cass/internal/ftsindex"
	"github.com/rawwerks/cass/internal/logging"
	"github.com/rawwerks/cass/internal/model"
	"github.com/rawwerks/cass/internal/outcome"
	"github.com/rawwerks/cass/internal/store"
)

// scanQueueDepth bounds the channel between scan workers and the single
// store/index writer, applying backpressure when ingest falls behind scan
// (spec.md §4.F).
const scanQueueDepth = 64

// Progress holds atomically-updated counters observers can poll mid-run.
type Progress struct {
	Discovered atomic.Int64
	Persisted  atomic.Int64
	Indexed    atomic.Int64
}

// Report summarizes one orchestration run.
type Report struct {
	Discovered int64
	Persisted  int64
	Indexed    int64
	Warnings   []connector.ScanWarning
	Errors     []error
}

// Partial reports whether any per-file/per-conversation failure occurred,
// which the CLI surfaces as exit code `partial` (spec.md §4.F, §7).
func (r *Report) Partial() bool {
	return len(r.Warnings) > 0 || len(r.Errors) > 0
}

// Orchestrator wires the connector registry to the store and FTS index.
type Orchestrator struct {
	cfg        config.Config
	layout     config.DataLayout
	store      *store.Store
	fts        *ftsindex.Index
	connectors []connector.Connector
	workers    int
	sources    []config.SourceConfig

	progress Progress
}

// New builds an Orchestrator. workers <= 0 defaults to 4. Registered remote
// sources are read from layout.SourcesToml (spec.md §6); a missing or
// malformed file just means no remote sources are configured.
func New(cfg config.Config, layout config.DataLayout, st *store.Store, fts *ftsindex.Index, connectors []connector.Connector, workers int) *Orchestrator {
	if workers <= 0 {
		workers = 4
	}
	return &Orchestrator{cfg: cfg, layout: layout, store: st, fts: fts, connectors: connectors, workers: workers, sources: loadSources(layout)}
}

// Progress exposes the live counters for observers (e.g. a CLI progress bar).
func (o *Orchestrator) Progress() *Progress { return &o.progress }

type scanJob struct {
	slug  string
	root  string
	prov  model.Provenance
	since int64
	rules []model.PathRewriteRule
}

// watchKey is the WatchState key this job's high-water mark is persisted
// under: the bare slug for the implicit local source, or "<source_id>/<slug>"
// for a registered remote source, so two sources scanning the same connector
// don't clobber each other's mark.
func (j scanJob) watchKey() string {
	if j.prov.SourceID == "" || j.prov.SourceID == "local" {
		return j.slug
	}
	return j.prov.SourceID + "/" + j.slug
}

type scanOutcome struct {
	job    scanJob
	result connector.ScanResult
	err    error
}

// RunFull truncates the store's conversation tables and recreates the FTS
// index, then re-ingests every connector from scratch. The vector index is
// not touched.
func (o *Orchestrator) RunFull(ctx context.Context) (*Report, error) {
	logging.Get(logging.CategoryOrchestrator).Info("full index: truncating store and fts index")
	if err := o.truncateStore(ctx); err != nil {
		return nil, fmt.Errorf("truncate store: %w", err)
	}
	if err := o.fts.Truncate(); err != nil {
		return nil, fmt.Errorf("truncate fts index: %w", err)
	}
	return o.run(ctx, nil)
}

// RunIncremental scans each connector from its persisted high-water mark
// forward, updating the mark on success.
func (o *Orchestrator) RunIncremental(ctx context.Context, ws *WatchState) (*Report, error) {
	report, err := o.run(ctx, ws)
	if err != nil {
		return report, err
	}
	if err := ws.Save(); err != nil {
		return report, fmt.Errorf("save watch state: %w", err)
	}
	return report, nil
}

// run is shared by full (ws == nil, since always 0) and incremental modes.
func (o *Orchestrator) run(ctx context.Context, ws *WatchState) (*Report, error) {
	jobs := append(o.buildJobs(ws), o.buildRemoteJobs(ws)...)

	resultCh := make(chan scanOutcome, scanQueueDepth)
	report := &Report{}

	writerDone := make(chan error, 1)
	go func() {
		for so := range resultCh {
			if so.err != nil {
				report.Errors = append(report.Errors, fmt.Errorf("%s: %w", so.job.slug, so.err))
				continue
			}
			report.Warnings = append(report.Warnings, so.result.Warnings...)
			if err := o.ingest(ctx, so.job, so.result, ws, report); err != nil {
				writerDone <- fmt.Errorf("writer aborted on %s: %w", so.job.slug, err)
				return
			}
		}
		writerDone <- nil
	}()

	// Scan workers run detection+scan per connector concurrently, bounded by
	// errgroup's SetLimit; resultCh's fixed capacity applies backpressure
	// against the single writer above (spec.md §4.F).
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)
	for _, job := range jobs {
		job := job
		g.Go(func() error {
			res, err := o.scanOne(gctx, job)
			select {
			case resultCh <- scanOutcome{job: job, result: res, err: err}:
			case <-gctx.Done():
				return gctx.Err()
			}
			return nil
		})
	}
	scanErr := g.Wait()
	close(resultCh)
	writerErr := <-writerDone

	report.Discovered = o.progress.Discovered.Load()
	report.Persisted = o.progress.Persisted.Load()
	report.Indexed = o.progress.Indexed.Load()

	if writerErr != nil {
		return report, outcome.Wrap(outcome.KindPartial, "re-run `cass index` to retry the failed sources", writerErr)
	}
	if scanErr != nil {
		return report, outcome.Wrap(outcome.KindPartial, "re-run `cass index` to retry the failed sources", scanErr)
	}
	return report, nil
}

func (o *Orchestrator) scanOne(ctx context.Context, job scanJob) (connector.ScanResult, error) {
	var target connector.Connector
	for _, c := range o.connectors {
		if c.Slug() == job.slug {
			target = c
			break
		}
	}
	if target == nil {
		return connector.ScanResult{}, fmt.Errorf("unknown connector slug %q", job.slug)
	}

	res, err := target.Scan(connector.ScanContext{
		Context:        ctx,
		ScanRoots:      []string{job.root},
		SinceTimestamp: job.since,
		Provenance:     job.prov,
	})
	o.progress.Discovered.Add(int64(len(res.Conversations)))
	return res, err
}

func (o *Orchestrator) buildJobs(ws *WatchState) []scanJob {
	var jobs []scanJob
	for _, c := range o.connectors {
		det := c.Detect()
		if !det.Present {
			continue
		}
		since := int64(0)
		if ws != nil {
			since = ws.Get(c.Slug())
		}
		for _, root := range det.ScanRoots {
			jobs = append(jobs, scanJob{
				slug: c.Slug(),
				root: root,
				prov: model.Provenance{SourceID: "local", OriginKind: model.OriginLocal},
				since: since,
			})
		}
	}
	return jobs
}

// ingest persists one connector's scan result: ensures the agent/workspace/
// source rows, upserts each conversation and its messages, then indexes the
// newly-inserted messages. A failure on one conversation is recorded in the
// report's Errors and skipped (spec.md §4.F); only a store-writer error aborts the whole batch.
func (o *Orchestrator) ingest(ctx context.Context, job scanJob, res connector.ScanResult, ws *WatchState, report *Report) error {
	slug := job.slug
	agentID, err := o.store.EnsureAgent(ctx, slug)
	if err != nil {
		return fmt.Errorf("ensure agent %s: %w", slug, err)
	}
	sourceID, err := o.store.EnsureSource(ctx, job.prov.SourceID, string(job.prov.OriginKind), job.prov.OriginHost)
	if err != nil {
		return fmt.Errorf("ensure source %s: %w", job.prov.SourceID, err)
	}

	maxTS := int64(0)
	docs := make(map[int64]ftsindex.Doc)

	for _, pc := range res.Conversations {
		var workspaceID sql.NullInt64
		if wsPath, ok := pc.Conversation.Metadata["workspace"]; ok && wsPath != "" {
			rewritten := rewriteWorkspacePath(job.rules, slug, wsPath)
			id, err := o.store.EnsureWorkspace(ctx, rewritten, wsPath)
			if err != nil {
				report.Errors = append(report.Errors, fmt.Errorf("ensure workspace for %s: %w", pc.Conversation.SourcePath, err))
				continue
			}
			workspaceID = sql.NullInt64{Int64: id, Valid: true}
			pc.Conversation.Metadata["workspace"] = rewritten
		}

		convID, err := o.store.UpsertConversation(ctx, &pc.Conversation, agentID, sourceID, workspaceID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("upsert conversation %s: %w", pc.Conversation.SourcePath, err))
			continue
		}

		n, err := o.store.InsertMessagesBatch(ctx, convID, pc.Messages)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("insert messages for %s: %w", pc.Conversation.SourcePath, err))
			continue
		}
		o.progress.Persisted.Add(int64(n))

		// InsertMessagesBatch doesn't return row ids (it's a plain idempotent
		// append), so re-read the conversation's messages to get the ids the
		// FTS index needs as document keys.
		stored, err := o.store.GetMessages(ctx, convID)
		if err != nil {
			report.Errors = append(report.Errors, fmt.Errorf("reload messages for %s: %w", pc.Conversation.SourcePath, err))
			continue
		}

		for _, m := range stored {
			docs[m.ID] = ftsindex.Doc{
				Agent:       slug,
				Workspace:   pc.Conversation.Metadata["workspace"],
				SourceID:    pc.Conversation.Provenance.SourceID,
				OriginKind:  string(pc.Conversation.Provenance.OriginKind),
				OriginHost:  pc.Conversation.Provenance.OriginHost,
				SourcePath:  pc.Conversation.SourcePath,
				MsgIdx:      m.Idx, // 0-based; planner converts to a 1-based line_number on the way out
				CreatedAt:   m.CreatedAt,
				Title:       pc.Conversation.Title,
				Content:     m.Content,
				ContentHash: m.ContentHash,
			}
		}

		if pc.Conversation.EndedAt > maxTS {
			maxTS = pc.Conversation.EndedAt
		} else if pc.Conversation.StartedAt > maxTS {
			maxTS = pc.Conversation.StartedAt
		}
	}

	if len(docs) > 0 {
		if err := o.fts.IndexBatch(docs); err != nil {
			return fmt.Errorf("index batch for %s: %w", slug, err)
		}
		o.progress.Indexed.Add(int64(len(docs)))
	}

	if ws != nil && maxTS > 0 {
		ws.Advance(job.watchKey(), maxTS)
	}
	return nil
}

func (o *Orchestrator) truncateStore(ctx context.Context) error {
	_, err := o.store.DB().ExecContext(ctx, `
		DELETE FROM snippets;
		DELETE FROM messages;
		DELETE FROM conversations;
	`)
	if err != nil {
		return err
	}
	return nil
}
