package query

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawwerks/cass/internal/ftsindex"
)

func newTestPlanner(t *testing.T) (*Planner, *ftsindex.Index) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "index")
	idx, _, err := ftsindex.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return NewPlanner(idx), idx
}

func seedDocs(t *testing.T, idx *ftsindex.Index) {
	t.Helper()
	docs := map[int64]ftsindex.Doc{
		1: {Agent: "claude-code", Workspace: "/home/user/proj", SourceID: "local", OriginKind: "local",
			SourcePath: "/tmp/a.jsonl", MsgIdx: 0, CreatedAt: 1000,
			Title: "fix cma-es optimizer", Content: "the cma-es optimizer diverges on high dimensions"},
		2: {Agent: "codex", Workspace: "/home/user/proj", SourceID: "local", OriginKind: "local",
			SourcePath: "/tmp/b.jsonl", MsgIdx: 0, CreatedAt: 2000,
			Title: "optimizer step size", Content: "reduce the optimizer step size to fix divergence"},
		3: {Agent: "claude-code", Workspace: "/home/user/proj", SourceID: "local", OriginKind: "local",
			SourcePath: "/tmp/c.jsonl", MsgIdx: 0, CreatedAt: 3000,
			Title: "unrelated", Content: "completely unrelated discussion about rendering"},
	}
	require.NoError(t, idx.IndexBatch(docs))
}

func TestSearchBareTermMatches(t *testing.T) {
	p, idx := newTestPlanner(t)
	seedDocs(t, idx)

	env, err := p.Search(context.Background(), Request{Query: "optimizer", Mode: ModeBalanced})
	require.NoError(t, err)
	require.Len(t, env.Hits, 2)
}

func TestSearchReportsOneBasedLineNumber(t *testing.T) {
	p, idx := newTestPlanner(t)
	seedDocs(t, idx)

	env, err := p.Search(context.Background(), Request{
		Query: "optimizer", Mode: ModeBalanced, Filters: Filters{Agent: "codex"},
	})
	require.NoError(t, err)
	require.Len(t, env.Hits, 1)
	require.Equal(t, 1, env.Hits[0].LineNumber, "MsgIdx 0 is the first message in its file, so line_number must be 1-based")
}

func TestSearchFiltersByAgent(t *testing.T) {
	p, idx := newTestPlanner(t)
	seedDocs(t, idx)

	env, err := p.Search(context.Background(), Request{
		Query: "optimizer", Mode: ModeBalanced, Filters: Filters{Agent: "codex"},
	})
	require.NoError(t, err)
	require.Len(t, env.Hits, 1)
	require.Equal(t, "codex", env.Hits[0].Agent)
}

func TestSearchNewestOldestOrdering(t *testing.T) {
	p, idx := newTestPlanner(t)
	seedDocs(t, idx)

	env, err := p.Search(context.Background(), Request{Query: "optimizer", Mode: ModeNewest})
	require.NoError(t, err)
	require.Len(t, env.Hits, 2)
	require.Equal(t, "/tmp/b.jsonl", env.Hits[0].SourcePath)

	env, err = p.Search(context.Background(), Request{Query: "optimizer", Mode: ModeOldest})
	require.NoError(t, err)
	require.Equal(t, "/tmp/a.jsonl", env.Hits[0].SourcePath)
}

func TestSearchUnknownModeIsUsageError(t *testing.T) {
	p, _ := newTestPlanner(t)
	_, err := p.Search(context.Background(), Request{Query: "optimizer", Mode: "bogus"})
	require.Error(t, err)
}

func TestSearchInvalidQueryIsUsageError(t *testing.T) {
	p, _ := newTestPlanner(t)
	_, err := p.Search(context.Background(), Request{Query: `"unterminated`})
	require.Error(t, err)
}

func TestSearchFallsBackToSubstringOnFewHits(t *testing.T) {
	p, idx := newTestPlanner(t)
	seedDocs(t, idx)

	env, err := p.Search(context.Background(), Request{Query: "render", Mode: ModeBalanced})
	require.NoError(t, err)
	require.True(t, env.Meta.WildcardFallback)
	require.Len(t, env.Hits, 1)
	require.Equal(t, "fuzzy", env.Hits[0].MatchType)
}

func TestSearchCachesSecondIdenticalCall(t *testing.T) {
	p, idx := newTestPlanner(t)
	seedDocs(t, idx)

	_, err := p.Search(context.Background(), Request{Query: "optimizer", Mode: ModeBalanced})
	require.NoError(t, err)

	env, err := p.Search(context.Background(), Request{Query: "optimizer", Mode: ModeBalanced})
	require.NoError(t, err)
	require.True(t, env.Meta.CacheHit)
}

func TestSearchPrefixWildcard(t *testing.T) {
	p, idx := newTestPlanner(t)
	seedDocs(t, idx)

	env, err := p.Search(context.Background(), Request{Query: "optim*", Mode: ModeBalanced})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(env.Hits), 1)
}
