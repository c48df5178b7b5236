package fusion

import "github.com/rawwerks/cass/internal/outcome"

// Projection selects which fields ride along on each hit in the response
// envelope (spec.md §4.H: "field-lazy projection"). The zero value is
// ProjectionSummary.
type Projection string

const (
	ProjectionMinimal Projection = "minimal"
	ProjectionSummary Projection = "summary"
	ProjectionFull    Projection = "full"
)

// minimalFields and summaryFields name the outcome.Hit fields those presets
// keep (ProjectionFull keeps every field); Project never reorders hits, only
// blanks fields.
var minimalFields = map[string]bool{
	"source_path": true, "line_number": true, "score": true, "match_type": true,
}

var summaryFields = unionFields(minimalFields, map[string]bool{
	"agent": true, "workspace": true, "title": true, "snippet": true,
	"preview": true, "source_id": true, "origin_kind": true,
})

// Project applies preset (or an explicit field allowlist, if non-empty) to
// every hit, returning a new slice — the input is left untouched so callers
// can re-project a cached result set under a different preset without
// re-querying.
func Project(hits []outcome.Hit, preset Projection, fields []string) []outcome.Hit {
	var allow map[string]bool
	switch {
	case len(fields) > 0:
		allow = make(map[string]bool, len(fields))
		for _, f := range fields {
			allow[f] = true
		}
	case preset == ProjectionMinimal:
		allow = minimalFields
	case preset == ProjectionFull:
		return append([]outcome.Hit(nil), hits...) // full: no blanking
	default:
		allow = summaryFields
	}

	out := make([]outcome.Hit, len(hits))
	for i, h := range hits {
		out[i] = projectOne(h, allow)
	}
	return out
}

func projectOne(h outcome.Hit, allow map[string]bool) outcome.Hit {
	p := outcome.Hit{}
	if allow["source_path"] {
		p.SourcePath = h.SourcePath
	}
	if allow["line_number"] {
		p.LineNumber = h.LineNumber
	}
	if allow["agent"] {
		p.Agent = h.Agent
	}
	if allow["workspace"] {
		p.Workspace = h.Workspace
	}
	if allow["source_id"] {
		p.SourceID = h.SourceID
	}
	if allow["origin_kind"] {
		p.OriginKind = h.OriginKind
	}
	if allow["origin_host"] {
		p.OriginHost = h.OriginHost
	}
	if allow["match_type"] {
		p.MatchType = h.MatchType
	}
	if allow["score"] {
		p.Score = h.Score
	}
	if allow["title"] {
		p.Title = h.Title
	}
	if allow["snippet"] {
		p.Snippet = h.Snippet
	}
	if allow["content"] {
		p.Content = h.Content
	}
	if allow["preview"] {
		p.Preview = h.Preview
	}
	if allow["content_hash"] {
		p.ContentHash = h.ContentHash
	}
	if allow["created_at"] {
		p.CreatedAt = h.CreatedAt
	}
	return p
}

func unionFields(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}
