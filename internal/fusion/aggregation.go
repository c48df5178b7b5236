package fusion

import (
	"sort"
	"time"

	"github.com/rawwerks/cass/internal/outcome"
)

// maxBuckets caps the buckets surfaced per facet (spec.md §4.H: "top-10
// buckets plus other_count").
const maxBuckets = 10

// Facet names one aggregatable field.
type Facet string

const (
	FacetAgent     Facet = "agent"
	FacetWorkspace Facet = "workspace"
	FacetDate      Facet = "date"
	FacetMatchType Facet = "match_type"
)

// Aggregate buckets hits by facet, returning the top maxBuckets values by
// count (ties broken by value ascending for determinism) plus the combined
// count of everything else.
func Aggregate(hits []outcome.Hit, facet Facet) outcome.Aggregation {
	counts := make(map[string]int)
	for _, h := range hits {
		counts[bucketValue(h, facet)]++
	}

	type kv struct {
		value string
		count int
	}
	all := make([]kv, 0, len(counts))
	for v, c := range counts {
		all = append(all, kv{v, c})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].value < all[j].value
	})

	n := len(all)
	if n > maxBuckets {
		n = maxBuckets
	}
	buckets := make([]outcome.AggregationBucket, n)
	other := 0
	for i, kv := range all {
		if i < maxBuckets {
			buckets[i] = outcome.AggregationBucket{Value: kv.value, Count: kv.count}
		} else {
			other += kv.count
		}
	}

	return outcome.Aggregation{Field: string(facet), Buckets: buckets, OtherCount: other}
}

func bucketValue(h outcome.Hit, facet Facet) string {
	switch facet {
	case FacetAgent:
		return h.Agent
	case FacetWorkspace:
		return h.Workspace
	case FacetMatchType:
		return h.MatchType
	case FacetDate:
		if h.CreatedAt == 0 {
			return "unknown"
		}
		return time.UnixMilli(h.CreatedAt).UTC().Format("2006-01-02")
	default:
		return ""
	}
}
