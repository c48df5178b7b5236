package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/blevesearch/bleve/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

// regexCacheSize bounds the compiled-regex-query cache keyed by
// (field, pattern) (spec.md §4.G: "cached under an LRU keyed by
// (field, pattern)").
const regexCacheSize = 512

type regexKey struct {
	field   string
	pattern string
}

// regexCache memoizes bleve regexp queries so repeated suffix/substring
// searches over the same pattern skip Go regexp re-validation.
type regexCache struct {
	cache *lru.Cache[regexKey, *bleve.RegexpQuery]
}

func newRegexCache() *regexCache {
	c, _ := lru.New[regexKey, *bleve.RegexpQuery](regexCacheSize)
	return &regexCache{cache: c}
}

func (rc *regexCache) get(field, pattern string) *bleve.RegexpQuery {
	key := regexKey{field: field, pattern: pattern}
	if q, ok := rc.cache.Get(key); ok {
		clone := *q
		return &clone
	}
	q := bleve.NewRegexpQuery(pattern)
	q.SetField(field)
	rc.cache.Add(key, q)
	clone := *q
	return &clone
}

// compiler turns an AST into a bleve.Query, routing each node kind onto the
// field/query-type spec.md §4.G names: edge-n-gram term lookup for prefix,
// regexp for suffix/substring, match-phrase for phrases, match (BM25) for
// bare terms.
type compiler struct {
	regex *regexCache
}

func newCompiler() *compiler {
	return &compiler{regex: newRegexCache()}
}

func (c *compiler) compile(n *Node) (bleve.Query, error) {
	if n == nil {
		return bleve.NewMatchAllQuery(), nil
	}
	switch n.Kind {
	case NodeTerm:
		return bleve.NewMatchQuery(n.Value), nil
	case NodePhrase:
		mp := bleve.NewMatchPhraseQuery(n.Value)
		return mp, nil
	case NodePrefix:
		return c.wildcardQuery(n.Value, prefixPattern), nil
	case NodeSuffix:
		return c.wildcardQuery(n.Value, suffixPattern), nil
	case NodeSubstring:
		return c.wildcardQuery(n.Value, substringPattern), nil
	case NodeAnd:
		disj := bleve.NewConjunctionQuery()
		for _, child := range n.Children {
			cq, err := c.compile(child)
			if err != nil {
				return nil, err
			}
			disj.AddQuery(cq)
		}
		return disj, nil
	case NodeOr:
		disj := bleve.NewDisjunctionQuery()
		for _, child := range n.Children {
			cq, err := c.compile(child)
			if err != nil {
				return nil, err
			}
			disj.AddQuery(cq)
		}
		return disj, nil
	case NodeNot:
		if len(n.Children) != 1 {
			return nil, fmt.Errorf("NOT node must have exactly one child")
		}
		inner, err := c.compile(n.Children[0])
		if err != nil {
			return nil, err
		}
		b := bleve.NewBooleanQuery()
		b.AddMust(bleve.NewMatchAllQuery())
		b.AddMustNot(inner)
		return b, nil
	default:
		return nil, fmt.Errorf("unknown node kind %d", n.Kind)
	}
}

type wildcardShape int

const (
	prefixPattern wildcardShape = iota
	suffixPattern
	substringPattern
)

// wildcardQuery builds the query for one wildcard node. Pure prefix goes
// through the content_prefix/title_prefix edge-n-gram fields as an exact
// term lookup (O(1), no automaton). Suffix/substring fall back to a regex
// scan over the full (non-ngram) text fields.
func (c *compiler) wildcardQuery(value string, shape wildcardShape) bleve.Query {
	value = strings.ToLower(value)
	if shape == prefixPattern {
		disj := bleve.NewDisjunctionQuery(
			termQuery(value, "content_prefix"),
			termQuery(value, "title_prefix"),
		)
		return disj
	}

	pattern := regexPatternFor(value, shape)
	disj := bleve.NewDisjunctionQuery(
		c.regex.get("content", pattern),
		c.regex.get("title", pattern),
	)
	return disj
}

func termQuery(value, field string) bleve.Query {
	t := bleve.NewTermQuery(value)
	t.SetField(field)
	return t
}

func regexPatternFor(value string, shape wildcardShape) string {
	quoted := regexp.QuoteMeta(value)
	switch shape {
	case suffixPattern:
		return ".*" + quoted
	case substringPattern:
		return ".*" + quoted + ".*"
	default:
		return quoted
	}
}
