package ftsindex

import (
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/registry"
)

// hyphenSplitFilterName is registered once at package init and referenced by
// name from the custom analyzer configuration built in schema.go.
const hyphenSplitFilterName = "cass_hyphen_split"

func init() {
	registry.RegisterTokenFilter(hyphenSplitFilterName, func(config map[string]interface{}, cache *registry.Cache) (analysis.TokenFilter, error) {
		return hyphenSplitFilter{}, nil
	})
}

// hyphenSplitFilter implements spec.md §4.D's "secondary split producing the
// hyphen-delimited components": for each hyphenated token (e.g. "cma-es") it
// emits the whole token plus one token per component ("cma", "es") at the
// same position, so a bare-word search for "cma" still matches documents
// containing "cma-es".
type hyphenSplitFilter struct{}

func (hyphenSplitFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		out = append(out, tok)
		parts := splitOnHyphen(tok.Term)
		if len(parts) < 2 {
			continue
		}
		for _, p := range parts {
			if len(p) == 0 {
				continue
			}
			out = append(out, &analysis.Token{
				Term:     p,
				Start:    tok.Start,
				End:      tok.End,
				Position: tok.Position,
				Type:     tok.Type,
			})
		}
	}
	return out
}

func splitOnHyphen(term []byte) [][]byte {
	var parts [][]byte
	start := 0
	for i, b := range term {
		if b == '-' {
			if i > start {
				parts = append(parts, term[start:i])
			}
			start = i + 1
		}
	}
	if start < len(term) {
		parts = append(parts, term[start:])
	}
	return parts
}
