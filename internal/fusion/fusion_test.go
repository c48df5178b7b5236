package fusion

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawwerks/cass/internal/outcome"
	"github.com/rawwerks/cass/internal/store"
	"github.com/rawwerks/cass/internal/vectorindex"
)

type fakeResolver struct {
	rows map[int64]*store.HitRow
}

func (f *fakeResolver) GetHitByMessageID(ctx context.Context, messageID int64) (*store.HitRow, error) {
	row, ok := f.rows[messageID]
	if !ok {
		return nil, fmt.Errorf("no such message %d", messageID)
	}
	return row, nil
}

func TestMergeCombinesDistinctHits(t *testing.T) {
	lexical := []outcome.Hit{
		{SourcePath: "a.jsonl", LineNumber: 0, ContentHash: "h1", SourceID: "local"},
		{SourcePath: "b.jsonl", LineNumber: 0, ContentHash: "h2", SourceID: "local"},
	}
	resolver := &fakeResolver{rows: map[int64]*store.HitRow{
		10: {MessageID: 10, SourcePath: "c.jsonl", Idx: 0, ContentHash: "h3", SourceID: "local"},
	}}
	semantic := []vectorindex.ScoredRow{
		{RowIndex: 0, Score: 0.9, Row: vectorindex.Row{MessageID: 10}},
	}

	merged, err := Merge(context.Background(), resolver, lexical, semantic)
	require.NoError(t, err)
	require.Len(t, merged, 3)
}

func TestMergeDedupsByContentHashAndSourceID(t *testing.T) {
	lexical := []outcome.Hit{
		{SourcePath: "a.jsonl", LineNumber: 0, ContentHash: "dup", SourceID: "local"},
	}
	resolver := &fakeResolver{rows: map[int64]*store.HitRow{
		10: {MessageID: 10, SourcePath: "a.jsonl", Idx: 0, ContentHash: "dup", SourceID: "local"},
	}}
	semantic := []vectorindex.ScoredRow{
		{RowIndex: 0, Score: 0.9, Row: vectorindex.Row{MessageID: 10}},
	}

	merged, err := Merge(context.Background(), resolver, lexical, semantic)
	require.NoError(t, err)
	require.Len(t, merged, 1)
}

func TestMergeSortsByRRFScoreDesc(t *testing.T) {
	lexical := []outcome.Hit{
		{SourcePath: "rank2.jsonl", LineNumber: 0, ContentHash: "h1", SourceID: "local"},
	}
	resolver := &fakeResolver{rows: map[int64]*store.HitRow{
		10: {MessageID: 10, SourcePath: "rank1.jsonl", Idx: 0, ContentHash: "h2", SourceID: "local"},
	}}
	// Two distinct hits, each at rank 0 of its own list, so both get the
	// same single-list RRF contribution; the merged list must still come
	// out in non-increasing score order.
	semantic := []vectorindex.ScoredRow{
		{RowIndex: 0, Score: 0.9, Row: vectorindex.Row{MessageID: 10}},
	}

	merged, err := Merge(context.Background(), resolver, lexical, semantic)
	require.NoError(t, err)
	require.Len(t, merged, 2)
	require.GreaterOrEqual(t, merged[0].Score, merged[1].Score)
}

func TestMergeSkipsStaleSemanticRows(t *testing.T) {
	resolver := &fakeResolver{rows: map[int64]*store.HitRow{}}
	semantic := []vectorindex.ScoredRow{
		{RowIndex: 0, Score: 0.9, Row: vectorindex.Row{MessageID: 999}},
	}
	merged, err := Merge(context.Background(), resolver, nil, semantic)
	require.NoError(t, err)
	require.Len(t, merged, 0)
}

func TestProjectMinimalDropsExtraFields(t *testing.T) {
	hits := []outcome.Hit{{SourcePath: "a", LineNumber: 1, Agent: "claude-code", Content: "full text", Score: 1.0}}
	projected := Project(hits, ProjectionMinimal, nil)
	require.Equal(t, "a", projected[0].SourcePath)
	require.Empty(t, projected[0].Agent)
	require.Empty(t, projected[0].Content)
}

func TestProjectFullKeepsEverything(t *testing.T) {
	hits := []outcome.Hit{{SourcePath: "a", Content: "full text"}}
	projected := Project(hits, ProjectionFull, nil)
	require.Equal(t, "full text", projected[0].Content)
}

func TestProjectExplicitFieldList(t *testing.T) {
	hits := []outcome.Hit{{SourcePath: "a", Title: "t", Content: "c"}}
	projected := Project(hits, "", []string{"title"})
	require.Empty(t, projected[0].SourcePath)
	require.Equal(t, "t", projected[0].Title)
	require.Empty(t, projected[0].Content)
}

func TestProjectDoesNotMutateInput(t *testing.T) {
	hits := []outcome.Hit{{SourcePath: "a", Content: "full text"}}
	_ = Project(hits, ProjectionMinimal, nil)
	require.Equal(t, "full text", hits[0].Content)
}

func TestAggregateTopBucketsPlusOther(t *testing.T) {
	var hits []outcome.Hit
	for i := 0; i < 15; i++ {
		hits = append(hits, outcome.Hit{Agent: fmt.Sprintf("agent-%02d", i)})
	}
	agg := Aggregate(hits, FacetAgent)
	require.Len(t, agg.Buckets, 10)
	require.Equal(t, 5, agg.OtherCount)
}

func TestAggregateByDateBuckets(t *testing.T) {
	hits := []outcome.Hit{
		{CreatedAt: 1735689600000}, // 2025-01-01T00:00:00Z
		{CreatedAt: 1735689600000},
		{CreatedAt: 0},
	}
	agg := Aggregate(hits, FacetDate)
	require.Len(t, agg.Buckets, 2)
}

func TestCursorRoundTrip(t *testing.T) {
	hit := outcome.Hit{SourcePath: "a.jsonl", LineNumber: 3, Score: 0.75}
	token := EncodeCursor(hit)
	require.NotEmpty(t, token)

	sortKey, id, err := DecodeCursor(token)
	require.NoError(t, err)
	require.InDelta(t, 0.75, sortKey, 1e-9)
	require.Equal(t, "a.jsonl:3", id)
}

func TestSeekPastSkipsUpToCursor(t *testing.T) {
	hits := []outcome.Hit{
		{SourcePath: "a.jsonl", LineNumber: 0},
		{SourcePath: "b.jsonl", LineNumber: 0},
		{SourcePath: "c.jsonl", LineNumber: 0},
	}
	token := EncodeCursor(hits[1])
	rest, err := SeekPast(hits, token)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, "c.jsonl", rest[0].SourcePath)
}

func TestSeekPastEmptyTokenReturnsAll(t *testing.T) {
	hits := []outcome.Hit{{SourcePath: "a.jsonl"}}
	rest, err := SeekPast(hits, "")
	require.NoError(t, err)
	require.Len(t, rest, 1)
}
