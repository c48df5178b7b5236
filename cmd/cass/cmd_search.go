package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/rawwerks/cass/internal/config"
	"github.com/rawwerks/cass/internal/embedding"
	"github.com/rawwerks/cass/internal/fusion"
	"github.com/rawwerks/cass/internal/outcome"
	"github.com/rawwerks/cass/internal/query"
	"github.com/rawwerks/cass/internal/store"
	"github.com/rawwerks/cass/internal/vectorindex"
)

var (
	srchAgent         string
	srchWorkspace     string
	srchSource        string
	srchSince         string
	srchUntil         string
	srchDays          int
	srchToday         bool
	srchMode          string
	srchRanking       string
	srchLimit         int
	srchCursor        string
	srchFields        string
	srchAggregate     string
	srchMaxContentLen int
	srchMaxTokens     int
	srchHighlight     bool
	srchExplain       bool
	srchDryRun        bool
	srchRobotFormat   string
	srchRobotMeta     bool
	srchRequestID     string
	srchSessionsFrom  string
	srchTraceFile     string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search indexed sessions lexically, semantically, or both",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&srchAgent, "agent", "", "restrict to one agent slug")
	f.StringVar(&srchWorkspace, "workspace", "", "restrict to one workspace path")
	f.StringVar(&srchSource, "source", "", "restrict to one source id")
	f.StringVar(&srchSince, "since", "", "only hits at or after this time (relative/named/ISO/US/unix)")
	f.StringVar(&srchUntil, "until", "", "only hits at or before this time")
	f.IntVar(&srchDays, "days", 0, "shorthand for --since -<days>d")
	f.BoolVar(&srchToday, "today", false, "restrict to today (UTC midnight to now)")
	f.StringVar(&srchMode, "mode", "lexical", "lexical, semantic, or hybrid")
	f.StringVar(&srchRanking, "ranking", "balanced", "recent, balanced, relevance, quality, newest, or oldest (spec.md §4.G)")
	f.IntVar(&srchLimit, "limit", 20, "maximum hits to return")
	f.StringVar(&srchCursor, "cursor", "", "opaque pagination cursor from a previous _meta.next_cursor")
	f.StringVar(&srchFields, "fields", "summary", "minimal, summary, full, or a comma-separated field list")
	f.StringVar(&srchAggregate, "aggregate", "", "comma-separated facets to bucket: agent,workspace,date,match_type")
	f.IntVar(&srchMaxContentLen, "max-content-length", 0, "truncate content/snippet/preview to N runes (0 = no limit)")
	f.IntVar(&srchMaxTokens, "max-tokens", 0, "approximate token budget for the whole result set (0 = no limit)")
	f.BoolVar(&srchHighlight, "highlight", false, "wrap matched query terms in **markers** in preview/snippet text")
	f.BoolVar(&srchExplain, "explain", false, "print the resolved mode, filters, and time range before results")
	f.BoolVar(&srchDryRun, "dry-run", false, "resolve filters and time range but do not execute the search")
	f.StringVar(&srchRobotFormat, "robot-format", "json", "jsonl, compact, or sessions (only with --json)")
	f.BoolVar(&srchRobotMeta, "robot-meta", false, "with --json, print only the _meta block")
	f.StringVar(&srchRequestID, "request-id", "", "override the generated request id")
	f.StringVar(&srchSessionsFrom, "sessions-from", "", "restrict to source_paths listed in this file, or - for stdin")
	f.StringVar(&srchTraceFile, "trace-file", "", "write the full JSON envelope to this file for later inspection")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	from, to, err := resolveTimeRange(srchSince, srchUntil, srchDays, srchToday, time.Now())
	if err != nil {
		return err
	}
	filters := query.Filters{Agent: srchAgent, Workspace: srchWorkspace, Source: srchSource, TimeFrom: from, TimeTo: to}
	ranking := query.Mode(srchRanking)

	if srchExplain || srchDryRun {
		fmt.Fprintf(os.Stderr, "mode=%s ranking=%s filters=%+v limit=%d cursor=%q\n", srchMode, ranking, filters, srchLimit, srchCursor)
	}
	if srchDryRun {
		return nil
	}

	cfg, layout, st, fts, err := openSession()
	if err != nil {
		return err
	}
	defer fts.Close()
	defer st.Close()

	planner := query.NewPlanner(fts)

	// Fetch enough of a pool to seek past a cursor and still fill the page.
	poolSize := srchLimit
	if srchCursor != "" {
		poolSize = srchLimit + 50
	}

	var env outcome.Envelope
	switch srchMode {
	case "lexical":
		env, err = planner.Search(ctx, query.Request{Query: args[0], Filters: filters, Mode: ranking, Size: poolSize})
		if err != nil {
			return err
		}
	case "semantic", "hybrid":
		env, err = runSemanticOrHybrid(ctx, cfg, layout, st, planner, args[0], filters, ranking, srchMode, poolSize)
		if err != nil {
			return err
		}
	default:
		return outcome.Usage("choose one of lexical, semantic, hybrid", "unknown search mode %q", srchMode)
	}

	if srchSessionsFrom != "" {
		env.Hits, err = restrictToSessions(env.Hits, srchSessionsFrom)
		if err != nil {
			return err
		}
	}

	if srchCursor != "" {
		env.Hits, err = fusion.SeekPast(env.Hits, srchCursor)
		if err != nil {
			return outcome.Usage("request a fresh cursor from the previous page", "decode cursor: %v", err)
		}
	}
	if len(env.Hits) > srchLimit {
		env.Meta.NextCursor = fusion.EncodeCursor(env.Hits[srchLimit-1])
		env.Hits = env.Hits[:srchLimit]
	}

	if srchHighlight {
		highlightHits(env.Hits, args[0])
	}
	truncateHits(env.Hits, srchMaxContentLen)
	env.Hits = capToTokenBudget(env.Hits, srchMaxTokens)

	if srchAggregate != "" {
		for _, fname := range strings.Split(srchAggregate, ",") {
			fname = strings.TrimSpace(fname)
			if fname == "" {
				continue
			}
			env.Aggregations = append(env.Aggregations, fusion.Aggregate(env.Hits, fusion.Facet(fname)))
		}
	}

	env.Hits = fusion.Project(env.Hits, projectionPreset(srchFields), explicitFieldList(srchFields))
	if srchRequestID != "" {
		env.Meta.RequestID = srchRequestID
	}

	if srchTraceFile != "" {
		if err := writeTraceFile(srchTraceFile, env); err != nil {
			logger.Sugar().Warnf("failed to write trace file: %v", err)
		}
	}

	return emitSearchResult(env)
}

// runSemanticOrHybrid embeds queryText with the configured embedder, scores
// it against the on-disk vector index, and (for hybrid) RRF-merges the
// result with a lexical pass over the same query and filters.
func runSemanticOrHybrid(ctx context.Context, cfg config.Config, layout config.DataLayout, st *store.Store,
	planner *query.Planner, queryText string, filters query.Filters, ranking query.Mode, retrievalMode string, poolSize int) (outcome.Envelope, error) {

	var lexicalHits []outcome.Hit
	if retrievalMode == "hybrid" {
		lexEnv, err := planner.Search(ctx, query.Request{Query: queryText, Filters: filters, Mode: ranking, Size: poolSize})
		if err != nil {
			return outcome.Envelope{}, err
		}
		lexicalHits = lexEnv.Hits
	}

	emb, err := embedding.New(string(cfg.SemanticEmbedder))
	if err != nil {
		return outcome.Envelope{}, err
	}
	path := filepath.Join(layout.VectorDir, fmt.Sprintf("index-%s-%d.cvvi", cfg.SemanticEmbedder, emb.Dimension()))
	if _, statErr := os.Stat(path); statErr != nil {
		return outcome.Envelope{}, outcome.IndexMissing("no semantic index at %s — run `cass index` first", path)
	}

	vidx, err := vectorindex.Open(path)
	if err != nil {
		return outcome.Envelope{}, outcome.Wrap(outcome.KindDataCorrupt, "run `cass index --force-rebuild`", err)
	}
	defer vidx.Close()

	pred := timeRangePredicate(filters.TimeFrom, filters.TimeTo)
	vec := emb.Embed(queryText)
	scored, err := vidx.Search(vec, poolSize, pred)
	if err != nil {
		return outcome.Envelope{}, outcome.Wrap(outcome.KindUnknown, "re-run with --verbose for detail", err)
	}

	merged, err := fusion.Merge(ctx, st, lexicalHits, scored)
	if err != nil {
		return outcome.Envelope{}, err
	}
	merged = filterHits(merged, filters)

	return outcome.Envelope{Hits: merged, Meta: outcome.Meta{RequestID: newSearchRequestID()}}, nil
}

func timeRangePredicate(from, to int64) vectorindex.Predicate {
	if from == 0 && to == 0 {
		return nil
	}
	return func(r vectorindex.Row) bool {
		if from != 0 && r.Timestamp < from {
			return false
		}
		if to != 0 && r.Timestamp > to {
			return false
		}
		return true
	}
}

// filterHits re-applies agent/workspace/source scoping to hits that came
// from the vector index, which has no field-level predicate support beyond
// timestamp (internal/vectorindex's row table carries no agent/workspace
// string columns). Lexical hits already satisfy these filters at the bleve
// layer, so re-checking them here is a harmless no-op.
func filterHits(hits []outcome.Hit, f query.Filters) []outcome.Hit {
	if f.Agent == "" && f.Workspace == "" && f.Source == "" {
		return hits
	}
	out := hits[:0:0]
	for _, h := range hits {
		if f.Agent != "" && h.Agent != f.Agent {
			continue
		}
		if f.Workspace != "" && h.Workspace != f.Workspace {
			continue
		}
		if f.Source != "" && h.SourceID != f.Source {
			continue
		}
		out = append(out, h)
	}
	return out
}

func newSearchRequestID() string {
	return "s-" + uuid.NewString()
}

func emitSearchResult(env outcome.Envelope) error {
	if flagJSON {
		if srchRobotMeta {
			env.Hits = nil
			env.Aggregations = nil
		}
		return writeEnvelope(env, robotFormat(srchRobotFormat))
	}
	printHitsHuman(env)
	return nil
}

func projectionPreset(fields string) fusion.Projection {
	switch fields {
	case "minimal":
		return fusion.ProjectionMinimal
	case "summary":
		return fusion.ProjectionSummary
	case "full":
		return fusion.ProjectionFull
	default:
		return fusion.ProjectionFull
	}
}

func explicitFieldList(fields string) []string {
	switch fields {
	case "minimal", "summary", "full", "":
		return nil
	default:
		return strings.Split(fields, ",")
	}
}

func truncateHits(hits []outcome.Hit, maxLen int) {
	if maxLen <= 0 {
		return
	}
	for i := range hits {
		hits[i].Content = truncateRunes(hits[i].Content, maxLen)
		hits[i].Snippet = truncateRunes(hits[i].Snippet, maxLen)
		hits[i].Preview = truncateRunes(hits[i].Preview, maxLen)
	}
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}

// capToTokenBudget drops trailing hits once a rough 4-chars-per-token
// estimate of the remaining text would exceed maxTokens. 0 means unbounded.
func capToTokenBudget(hits []outcome.Hit, maxTokens int) []outcome.Hit {
	if maxTokens <= 0 {
		return hits
	}
	budget := maxTokens * 4
	used := 0
	for i, h := range hits {
		text := h.Content
		if text == "" {
			text = h.Snippet
		}
		if text == "" {
			text = h.Preview
		}
		used += len(text)
		if used > budget {
			return hits[:i]
		}
	}
	return hits
}

func highlightHits(hits []outcome.Hit, queryText string) {
	terms := strings.Fields(strings.Trim(queryText, `"`))
	for i := range hits {
		hits[i].Preview = highlightTerms(hits[i].Preview, terms)
		hits[i].Snippet = highlightTerms(hits[i].Snippet, terms)
	}
}

func highlightTerms(text string, terms []string) string {
	if text == "" {
		return text
	}
	for _, t := range terms {
		if t == "" {
			continue
		}
		lower := strings.ToLower(text)
		lt := strings.ToLower(t)
		idx := strings.Index(lower, lt)
		if idx < 0 {
			continue
		}
		text = text[:idx] + "**" + text[idx:idx+len(t)] + "**" + text[idx+len(t):]
	}
	return text
}

func restrictToSessions(hits []outcome.Hit, source string) ([]outcome.Hit, error) {
	var r *bufio.Scanner
	if source == "-" {
		r = bufio.NewScanner(os.Stdin)
	} else {
		f, err := os.Open(source)
		if err != nil {
			return nil, outcome.Wrap(outcome.KindUsage, "check the --sessions-from path", err)
		}
		defer f.Close()
		r = bufio.NewScanner(f)
	}
	allow := map[string]bool{}
	for r.Scan() {
		line := strings.TrimSpace(r.Text())
		if line != "" {
			allow[line] = true
		}
	}
	out := hits[:0:0]
	for _, h := range hits {
		if allow[h.SourcePath] {
			out = append(out, h)
		}
	}
	return out, nil
}

func writeTraceFile(path string, env outcome.Envelope) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return writeEnvelopeTo(f, env, formatJSON)
}
