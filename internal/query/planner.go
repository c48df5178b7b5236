// Package query implements cass's search DSL: an AST parser, execution
// routing onto bleve query types, the ranking blend and six named modes,
// auto-fuzzy fallback, and a sharded LRU result cache (spec.md §4.G).
package query

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/rawwerks/cass/internal/ftsindex"
	"github.com/rawwerks/cass/internal/logging"
	"github.com/rawwerks/cass/internal/outcome"
)

// minHitsBeforeFallback is the threshold below which a bare-term or phrase
// query is automatically re-run as a substring wildcard (spec.md §4.G:
// "auto-fuzzy fallback at <3 hits").
const minHitsBeforeFallback = 3

// Request is one search invocation.
type Request struct {
	Query   string
	Filters Filters
	Mode    Mode
	Size    int
	From    int
}

// Planner compiles, executes, ranks, and caches searches against one
// ftsindex.Index.
type Planner struct {
	index    *ftsindex.Index
	compiler *compiler
	cache    *Cache
}

// NewPlanner builds a Planner over idx with its own compiled-query and
// result caches.
func NewPlanner(idx *ftsindex.Index) *Planner {
	return &Planner{index: idx, compiler: newCompiler(), cache: NewCache()}
}

// Cache exposes the result cache for metrics reporting (`cass health`).
func (p *Planner) Cache() *Cache { return p.cache }

// Search parses, compiles, executes, ranks, and caches one query.
func (p *Planner) Search(ctx context.Context, req Request) (outcome.Envelope, error) {
	start := time.Now()
	if req.Mode == "" {
		req.Mode = ModeBalanced
	}
	if req.Size <= 0 {
		req.Size = 20
	}
	if _, ok := modeTable[req.Mode]; !ok {
		return outcome.Envelope{}, outcome.Usage("choose one of recent/balanced/relevance/quality/newest/oldest",
			"unknown ranking mode %q", req.Mode)
	}

	ast, err := Parse(req.Query)
	if err != nil {
		return outcome.Envelope{}, outcome.Usage("check the query syntax (quotes, parentheses, AND/OR/NOT)",
			"parse query: %v", err)
	}

	cacheKey := CacheKey{Query: req.Query, Filters: req.Filters, Mode: req.Mode}
	if cached, hit, shortfall := p.cache.Get(cacheKey); hit {
		env := *cached
		env.Meta.CacheHit = true
		env.Meta.CacheShortfall = shortfall
		env.Meta.ElapsedMs = time.Since(start).Milliseconds()
		logging.Get(logging.CategoryQuery).Debug("cache hit for %q (mode=%s, shortfall=%v)", req.Query, req.Mode, shortfall)
		return env, nil
	}

	env, err := p.execute(ctx, ast, req, false)
	if err != nil {
		return outcome.Envelope{}, err
	}
	env.Meta.ElapsedMs = time.Since(start).Milliseconds()

	p.cache.Put(cacheKey, env)
	return env, nil
}

func (p *Planner) execute(ctx context.Context, ast *Node, req Request, isFallback bool) (outcome.Envelope, error) {
	bq, err := p.compiler.compile(ast)
	if err != nil {
		return outcome.Envelope{}, outcome.Usage("simplify the query", "compile query: %v", err)
	}
	full := applyFilters(bq, req.Filters)

	spec := modeTable[req.Mode]

	// Pull a larger candidate pool than the page size for score-blended modes:
	// bleve's own top-N cutoff is plain BM25, but the final order after
	// blending in recency can differ, so truncating at bleve's layer would
	// silently drop hits that only rank highly once alpha is applied.
	poolSize := req.Size + req.From
	if !spec.timestampOnly {
		poolSize = candidatePoolSize(req.Size + req.From)
	}

	queryStart := time.Now()
	sreq := bleve.NewSearchRequestOptions(full, poolSize, 0, false)
	sreq.Fields = []string{"agent", "workspace", "source_id", "origin_kind", "origin_host",
		"source_path", "msg_idx", "created_at", "title", "preview", "content_hash"}

	if spec.timestampOnly {
		if spec.timestampDesc {
			sreq.SortBy([]string{"-created_at"})
		} else {
			sreq.SortBy([]string{"created_at"})
		}
	}

	res, err := p.index.Bleve().Search(sreq)
	if err != nil {
		return outcome.Envelope{}, outcome.Wrap(outcome.KindUnknown, "re-run with --verbose for detail", err)
	}
	queryMs := time.Since(queryStart).Milliseconds()

	if !isFallback && res.Total < uint64(minHitsBeforeFallback) && astMatchType(ast) != "substring" {
		fallbackAST := toSubstringFallback(ast)
		if fallbackAST != nil {
			fbReq := req
			env, err := p.execute(ctx, fallbackAST, fbReq, true)
			if err == nil {
				env.Meta.WildcardFallback = true
				env.Meta.QueryMs = queryMs + env.Meta.QueryMs
				return env, nil
			}
		}
	}

	maxTS := int64(0)
	hits := make([]rankedHit, 0, len(res.Hits))
	rawByID := make(map[int64]*hitFields, len(res.Hits))
	for _, h := range res.Hits {
		f := fieldsFrom(h)
		if f.createdAt > maxTS {
			maxTS = f.createdAt
		}
		msgID := msgIDFromDocID(h.ID)
		rawByID[msgID] = f
		hits = append(hits, rankedHit{
			messageID:  msgID,
			bm25:       h.Score,
			createdAt:  f.createdAt,
			sourcePath: f.sourcePath,
			msgIdx:     f.msgIdx,
		})
	}

	quality := matchQualityFor(astDominantKind(ast), isFallback)
	for i := range hits {
		hits[i].blended = blend(hits[i].bm25, quality, hits[i].createdAt, maxTS, modeTable[req.Mode].alpha)
	}
	sortHits(hits, req.Mode)

	if req.From < len(hits) {
		end := req.From + req.Size
		if end > len(hits) {
			end = len(hits)
		}
		hits = hits[req.From:end]
	} else {
		hits = nil
	}

	env := outcome.Envelope{Hits: make([]outcome.Hit, 0, len(hits))}
	for _, rh := range hits {
		f := rawByID[rh.messageID]
		env.Hits = append(env.Hits, outcome.Hit{
			SourcePath:  f.sourcePath,
			LineNumber:  f.msgIdx + 1, // msgIdx is the 0-based message index; hits report 1-based lines
			Agent:       f.agent,
			Workspace:   f.workspace,
			SourceID:    f.sourceID,
			OriginKind:  f.originKind,
			OriginHost:  f.originHost,
			MatchType:   astMatchTypeLabel(ast, isFallback),
			Score:       rh.blended,
			Title:       f.title,
			Preview:     f.preview,
			ContentHash: f.contentHash,
			CreatedAt:   f.createdAt,
		})
	}
	env.Meta.QueryMs = queryMs
	env.Meta.RequestID = newRequestID()
	return env, nil
}

type hitFields struct {
	agent, workspace, sourceID, originKind, originHost, sourcePath, title, preview, contentHash string
	msgIdx                                                                                      int
	createdAt                                                                                   int64
}

func fieldsFrom(h *bleve.DocumentMatch) *hitFields {
	get := func(k string) string {
		if v, ok := h.Fields[k].(string); ok {
			return v
		}
		return ""
	}
	getNum := func(k string) float64 {
		if v, ok := h.Fields[k].(float64); ok {
			return v
		}
		return 0
	}
	return &hitFields{
		agent: get("agent"), workspace: get("workspace"), sourceID: get("source_id"),
		originKind: get("origin_kind"), originHost: get("origin_host"), sourcePath: get("source_path"),
		title: get("title"), preview: get("preview"), contentHash: get("content_hash"),
		msgIdx: int(getNum("msg_idx")), createdAt: int64(getNum("created_at")),
	}
}

func msgIDFromDocID(docID string) int64 {
	n, _ := strconv.ParseInt(strings.TrimPrefix(docID, "m"), 10, 64)
	return n
}

func applyFilters(q bleve.Query, f Filters) bleve.Query {
	if f.empty() {
		return q
	}
	b := bleve.NewBooleanQuery()
	b.AddMust(q)
	if f.Agent != "" {
		t := bleve.NewTermQuery(f.Agent)
		t.SetField("agent")
		b.AddMust(t)
	}
	if f.Workspace != "" {
		t := bleve.NewTermQuery(f.Workspace)
		t.SetField("workspace")
		b.AddMust(t)
	}
	if f.Source != "" {
		t := bleve.NewTermQuery(f.Source)
		t.SetField("source_id")
		b.AddMust(t)
	}
	if f.TimeFrom != 0 || f.TimeTo != 0 {
		rng := bleve.NewNumericRangeQuery(rangeBound(f.TimeFrom), rangeBound(f.TimeTo))
		rng.SetField("created_at")
		b.AddMust(rng)
	}
	return b
}

const maxCandidatePool = 1000

// candidatePoolSize scales the bleve fetch size to leave headroom for
// re-ranking by the blended score rather than raw BM25.
func candidatePoolSize(requested int) int {
	pool := requested * 5
	if pool < 50 {
		pool = 50
	}
	if pool > maxCandidatePool {
		pool = maxCandidatePool
	}
	return pool
}

func rangeBound(v int64) *float64 {
	if v == 0 {
		return nil
	}
	f := float64(v)
	return &f
}

// astDominantKind reports the match-quality-relevant kind for the whole
// query. Composite boolean queries fall back to NodeTerm (exact, 1.0) — a
// deliberate simplification documented in DESIGN.md, since spec.md's
// match_quality table is defined per-term, not per-query-tree.
func astDominantKind(n *Node) NodeKind {
	switch n.Kind {
	case NodeTerm, NodePhrase, NodePrefix, NodeSuffix, NodeSubstring:
		return n.Kind
	case NodeNot:
		if len(n.Children) == 1 {
			return astDominantKind(n.Children[0])
		}
	case NodeAnd, NodeOr:
		if len(n.Children) == 1 {
			return astDominantKind(n.Children[0])
		}
	}
	return NodeTerm
}

func astMatchType(n *Node) string {
	switch astDominantKind(n) {
	case NodePrefix:
		return "prefix"
	case NodeSuffix:
		return "suffix"
	case NodeSubstring:
		return "substring"
	case NodePhrase:
		return "phrase"
	default:
		return "exact"
	}
}

func astMatchTypeLabel(n *Node, isFallback bool) string {
	if isFallback {
		return "fuzzy"
	}
	return astMatchType(n)
}

// toSubstringFallback rewrites a single leaf term/phrase node into a
// substring wildcard for the auto-fuzzy retry. Composite queries (AND/OR/
// NOT with multiple operands) are left alone — the fallback only applies to
// simple single-term searches per spec.md §4.G.
func toSubstringFallback(n *Node) *Node {
	switch n.Kind {
	case NodeTerm, NodePhrase:
		return &Node{Kind: NodeSubstring, Value: n.Value}
	default:
		return nil
	}
}

var requestSeq int64

func newRequestID() string {
	requestSeq++
	return fmt.Sprintf("q%d-%d", time.Now().UnixNano()%1_000_000, requestSeq)
}
