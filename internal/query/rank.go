package query

import "sort"

// Mode is one of the six named ranking modes (spec.md §4.G).
type Mode string

const (
	ModeRecent    Mode = "recent"
	ModeBalanced  Mode = "balanced"
	ModeRelevance Mode = "relevance"
	ModeQuality   Mode = "quality"
	ModeNewest    Mode = "newest"
	ModeOldest    Mode = "oldest"
)

// modeSpec holds the recency weight (alpha) blended against bm25 ×
// match_quality, or a pure-timestamp sort for newest/oldest.
type modeSpec struct {
	alpha        float64
	timestampOnly bool
	timestampDesc bool
}

var modeTable = map[Mode]modeSpec{
	ModeRecent:    {alpha: 1.0},
	ModeBalanced:  {alpha: 0.4},
	ModeRelevance: {alpha: 0.1},
	ModeQuality:   {alpha: 0.0},
	ModeNewest:    {timestampOnly: true, timestampDesc: true},
	ModeOldest:    {timestampOnly: true, timestampDesc: false},
}

// matchQuality per spec.md §4.G's table: exact:1.0, prefix:0.9, suffix:0.8,
// substring:0.6, fuzzy:0.4. Phrase matches are treated as exact.
func matchQualityFor(kind NodeKind, fuzzyFallback bool) float64 {
	if fuzzyFallback {
		return 0.4
	}
	switch kind {
	case NodeTerm, NodePhrase:
		return 1.0
	case NodePrefix:
		return 0.9
	case NodeSuffix:
		return 0.8
	case NodeSubstring:
		return 0.6
	default:
		return 1.0
	}
}

// rankedHit is one scored result prior to final field projection.
type rankedHit struct {
	messageID  int64
	bm25       float64
	blended    float64
	createdAt  int64
	sourcePath string
	msgIdx     int
}

// blend computes bm25 × match_quality + α × recency, where recency is the
// hit's created_at normalized against the result set's max timestamp so it
// stays comparable in scale to a BM25 score (spec.md §4.G).
func blend(bm25, matchQuality float64, createdAt, maxTS int64, alpha float64) float64 {
	recency := 0.0
	if maxTS > 0 {
		recency = float64(createdAt) / float64(maxTS)
	}
	return bm25*matchQuality + alpha*recency
}

// sortHits orders hits per mode and applies the universal
// (source_path, message_idx) ascending tie-break (spec.md §4.G).
func sortHits(hits []rankedHit, mode Mode) {
	spec := modeTable[mode]
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if spec.timestampOnly {
			if a.createdAt != b.createdAt {
				if spec.timestampDesc {
					return a.createdAt > b.createdAt
				}
				return a.createdAt < b.createdAt
			}
			return tieBreakLess(a, b)
		}
		if a.blended != b.blended {
			return a.blended > b.blended
		}
		return tieBreakLess(a, b)
	})
}

func tieBreakLess(a, b rankedHit) bool {
	if a.sourcePath != b.sourcePath {
		return a.sourcePath < b.sourcePath
	}
	return a.msgIdx < b.msgIdx
}
