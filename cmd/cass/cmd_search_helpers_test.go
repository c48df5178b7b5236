package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawwerks/cass/internal/fusion"
	"github.com/rawwerks/cass/internal/outcome"
	"github.com/rawwerks/cass/internal/query"
	"github.com/rawwerks/cass/internal/vectorindex"
)

func TestTruncateRunesLeavesShortTextAlone(t *testing.T) {
	require.Equal(t, "hello", truncateRunes("hello", 10))
}

func TestTruncateRunesCutsLongText(t *testing.T) {
	require.Equal(t, "hel…", truncateRunes("hello world", 3))
}

func TestTruncateHitsAppliesToAllTextFields(t *testing.T) {
	hits := []outcome.Hit{{Content: "abcdef", Snippet: "abcdef", Preview: "abcdef"}}
	truncateHits(hits, 3)
	require.Equal(t, "abc…", hits[0].Content)
	require.Equal(t, "abc…", hits[0].Snippet)
	require.Equal(t, "abc…", hits[0].Preview)
}

func TestTruncateHitsZeroIsNoOp(t *testing.T) {
	hits := []outcome.Hit{{Content: "abcdef"}}
	truncateHits(hits, 0)
	require.Equal(t, "abcdef", hits[0].Content)
}

func TestCapToTokenBudgetDropsTrailingHits(t *testing.T) {
	hits := []outcome.Hit{
		{Content: "0123456789"}, // 10 chars
		{Content: "0123456789"},
		{Content: "0123456789"},
	}
	// budget of 5 tokens ~ 20 chars: first two hits fit (20), third pushes over.
	got := capToTokenBudget(hits, 5)
	require.Len(t, got, 2)
}

func TestCapToTokenBudgetZeroIsUnbounded(t *testing.T) {
	hits := []outcome.Hit{{Content: "x"}, {Content: "y"}}
	require.Len(t, capToTokenBudget(hits, 0), 2)
}

func TestHighlightTermsWrapsFirstMatchCaseInsensitive(t *testing.T) {
	require.Equal(t, "the **Quick** fox", highlightTerms("the Quick fox", []string{"quick"}))
}

func TestHighlightTermsNoMatchIsUnchanged(t *testing.T) {
	require.Equal(t, "the quick fox", highlightTerms("the quick fox", []string{"zzz"}))
}

func TestFilterHitsByAgentWorkspaceSource(t *testing.T) {
	hits := []outcome.Hit{
		{Agent: "claudecode", Workspace: "/w1", SourceID: "s1"},
		{Agent: "codex", Workspace: "/w1", SourceID: "s1"},
	}
	got := filterHits(hits, query.Filters{Agent: "claudecode"})
	require.Len(t, got, 1)
	require.Equal(t, "claudecode", got[0].Agent)
}

func TestFilterHitsEmptyFiltersReturnsAll(t *testing.T) {
	hits := []outcome.Hit{{Agent: "a"}, {Agent: "b"}}
	require.Len(t, filterHits(hits, query.Filters{}), 2)
}

func TestTimeRangePredicateNilWhenUnbounded(t *testing.T) {
	require.Nil(t, timeRangePredicate(0, 0))
}

func TestTimeRangePredicateFiltersByTimestamp(t *testing.T) {
	pred := timeRangePredicate(100, 200)
	require.True(t, pred(vectorindex.Row{Timestamp: 150}))
	require.False(t, pred(vectorindex.Row{Timestamp: 50}))
	require.False(t, pred(vectorindex.Row{Timestamp: 250}))
}

func TestProjectionPresetMapping(t *testing.T) {
	require.Equal(t, fusion.ProjectionMinimal, projectionPreset("minimal"))
	require.Equal(t, fusion.ProjectionSummary, projectionPreset("summary"))
	require.Equal(t, fusion.ProjectionFull, projectionPreset("full"))
	require.Equal(t, fusion.ProjectionFull, projectionPreset("whatever"))
}

func TestExplicitFieldListOnlyForCustomLists(t *testing.T) {
	require.Nil(t, explicitFieldList("summary"))
	require.Equal(t, []string{"agent", "score"}, explicitFieldList("agent,score"))
}
