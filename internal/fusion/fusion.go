// Package fusion implements cass's result-fusion layer (spec.md §4.H):
// reciprocal-rank-fusion merge of lexical and semantic result lists,
// cross-source dedup, field-lazy projection, facet aggregation, and opaque
// pagination cursors.
package fusion

import (
	"context"
	"fmt"

	"github.com/rawwerks/cass/internal/outcome"
	"github.com/rawwerks/cass/internal/store"
	"github.com/rawwerks/cass/internal/vectorindex"
)

// rrfK is the reciprocal-rank-fusion damping constant (spec.md §4.H: "K=60").
const rrfK = 60

// HitResolver turns a vector-index row into a display-ready Hit by joining
// back through the relational store (the vector index on disk only carries
// identity + score, never text).
type HitResolver interface {
	GetHitByMessageID(ctx context.Context, messageID int64) (*store.HitRow, error)
}

// Merge combines a ranked lexical result list (as produced by the query
// package, already ordered best-first) with a ranked semantic result list
// (as produced by vectorindex.Search) into one RRF-fused, deduplicated,
// ordered hit list.
func Merge(ctx context.Context, resolver HitResolver, lexical []outcome.Hit, semantic []vectorindex.ScoredRow) ([]outcome.Hit, error) {
	scores := make(map[string]float64)
	byKey := make(map[string]outcome.Hit)
	order := make([]string, 0, len(lexical)+len(semantic))

	for rank, h := range lexical {
		key := dedupKey(h.ContentHash, h.SourceID)
		scores[key] += rrfContribution(rank)
		if _, seen := byKey[key]; !seen {
			byKey[key] = h
			order = append(order, key)
		}
	}

	for rank, sr := range semantic {
		hit, err := resolveSemanticHit(ctx, resolver, sr)
		if err != nil {
			// A stale vector-index row (message deleted by a later full
			// reindex) shouldn't fail the whole search — skip it.
			continue
		}
		key := dedupKey(hit.ContentHash, hit.SourceID)
		scores[key] += rrfContribution(rank)
		if existing, seen := byKey[key]; seen {
			// Prefer the lexical hit's richer MatchType/score context but
			// keep the first-seen entry; RRF score is tracked separately.
			_ = existing
			continue
		}
		byKey[key] = hit
		order = append(order, key)
	}

	merged := make([]outcome.Hit, 0, len(order))
	for _, key := range order {
		h := byKey[key]
		h.Score = scores[key]
		merged = append(merged, h)
	}

	sortByRRFThenTieBreak(merged)
	return merged, nil
}

func rrfContribution(rank int) float64 {
	return 1.0 / float64(rrfK+rank+1) // rank is 0-based; spec's rank is 1-based
}

func dedupKey(contentHash, sourceID string) string {
	return fmt.Sprintf("%s\x00%s", contentHash, sourceID)
}

func resolveSemanticHit(ctx context.Context, resolver HitResolver, sr vectorindex.ScoredRow) (outcome.Hit, error) {
	row, err := resolver.GetHitByMessageID(ctx, int64(sr.Row.MessageID))
	if err != nil {
		return outcome.Hit{}, err
	}
	return outcome.Hit{
		SourcePath:  row.SourcePath,
		LineNumber:  row.Idx + 1, // row.Idx is the 0-based message index; hits report 1-based lines
		Agent:       row.Agent,
		Workspace:   row.Workspace,
		SourceID:    row.SourceID,
		OriginKind:  row.OriginKind,
		OriginHost:  row.OriginHost,
		MatchType:   "semantic",
		Score:       float64(sr.Score),
		Title:       row.Title,
		Preview:     previewOf(row.Content),
		Content:     row.Content,
		ContentHash: row.ContentHash,
		CreatedAt:   row.CreatedAt,
	}, nil
}

func previewOf(content string) string {
	const n = 200
	r := []rune(content)
	if len(r) <= n {
		return content
	}
	return string(r[:n])
}

func sortByRRFThenTieBreak(hits []outcome.Hit) {
	insertionSortHits(hits)
}

// insertionSortHits keeps the fused list small-N friendly and avoids
// pulling in sort.Slice's reflection path for what's typically a few dozen
// hits per query.
func insertionSortHits(hits []outcome.Hit) {
	for i := 1; i < len(hits); i++ {
		j := i
		for j > 0 && hitLess(hits[j], hits[j-1]) {
			hits[j], hits[j-1] = hits[j-1], hits[j]
			j--
		}
	}
}

func hitLess(a, b outcome.Hit) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.SourcePath != b.SourcePath {
		return a.SourcePath < b.SourcePath
	}
	return a.LineNumber < b.LineNumber
}
