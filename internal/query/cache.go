package query

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bitset"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rawwerks/cass/internal/outcome"
)

const (
	cacheShardCount  = 8
	cacheShardSize   = 256 // 256 * 8 shards ≈ 2048 total entries (spec.md §4.G)
	cacheMaskBits    = 64
	cacheByteCeiling = 10 * 1024 * 1024
)

// CacheKey identifies one cached result set (spec.md §4.G: "keyed by
// (query, filters, ranking)").
type CacheKey struct {
	Query   string
	Filters Filters
	Mode    Mode
}

func (k CacheKey) string() string {
	return fmt.Sprintf("%s\x00%s|%s|%s|%d|%d\x00%s", k.Query, k.Filters.Agent, k.Filters.Workspace,
		k.Filters.Source, k.Filters.TimeFrom, k.Filters.TimeTo, k.Mode)
}

type cacheEntry struct {
	envelope outcome.Envelope
	query    string
	filters  Filters
	mode     Mode
	mask     *bitset.BitSet
	bytes    int
}

// Metrics tracks cache effectiveness for `cass health`/`cass doctor`
// reporting.
type Metrics struct {
	Hits       atomic.Int64
	Misses     atomic.Int64
	Shortfalls atomic.Int64
	Reloads    atomic.Int64
}

type shard struct {
	lru   *lru.Cache[string, *cacheEntry]
	bytes atomic.Int64
}

// Cache is a sharded LRU of search results with a per-entry Bloom mask over
// query tokens, so a strictly-extending query can reuse a cached superset's
// result only when the mask proves the new tokens were already covered
// (spec.md §4.G: "prefix-extension soundness").
type Cache struct {
	shards  []*shard
	Metrics Metrics
}

// NewCache builds the sharded cache with the defaults spec.md §4.G names:
// 256 entries/shard, 2048 total, 10 MiB approximate byte ceiling per shard.
func NewCache() *Cache {
	c := &Cache{shards: make([]*shard, cacheShardCount)}
	for i := range c.shards {
		l, _ := lru.New[string, *cacheEntry](cacheShardSize)
		c.shards[i] = &shard{lru: l}
	}
	return c
}

func (c *Cache) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return c.shards[h.Sum32()%uint32(cacheShardCount)]
}

func tokensFor(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

func maskFor(tokens []string) *bitset.BitSet {
	mask := bitset.New(cacheMaskBits)
	for _, t := range tokens {
		mask.Set(tokenBit(t))
	}
	return mask
}

func tokenBit(token string) uint {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	return uint(h.Sum64() % cacheMaskBits)
}

// Get returns a cached envelope for key if present — either an exact key
// match, or (when key.Query strictly extends a cached entry's query) a
// superset hit whose Bloom mask proves it already covers every token in the
// new query. shortfall reports a mask-miss on an extension attempt, which
// callers may want to surface via Meta.CacheShortfall.
func (c *Cache) Get(key CacheKey) (env *outcome.Envelope, hit bool, shortfall bool) {
	keyStr := key.string()
	sh := c.shardFor(keyStr)
	entry, ok := sh.lru.Get(keyStr)
	if ok {
		c.Metrics.Hits.Add(1)
		return &entry.envelope, true, false
	}

	// Extension case: look for a cached entry, in any shard, under the same
	// filters/mode whose query is a strict prefix of this one. Filters/mode
	// must match exactly — the query-text prefix alone doesn't prove the
	// cached result set was computed under the same constraints (spec.md
	// §4.G invariant 6).
	var candidates []*cacheEntry
	for _, s := range c.shards {
		for _, ck := range s.lru.Keys() {
			if e, ok := s.lru.Peek(ck); ok {
				candidates = append(candidates, e)
			}
		}
	}
	for _, cached := range candidates {
		if cached.query == key.Query || !strings.HasPrefix(key.Query, cached.query) {
			continue
		}
		if cached.filters != key.Filters || cached.mode != key.Mode {
			continue
		}
		tokens := tokensFor(key.Query)
		covered := true
		for _, t := range tokens {
			if !cached.mask.Test(tokenBit(t)) {
				covered = false
				break
			}
		}
		if !covered {
			c.Metrics.Shortfalls.Add(1)
			return nil, false, true
		}
		c.Metrics.Hits.Add(1)
		return &cached.envelope, true, false
	}

	c.Metrics.Misses.Add(1)
	return nil, false, false
}

// Put stores env under key, tracking an approximate byte cost; if a shard's
// estimated footprint exceeds cacheByteCeiling, the shard is purged outright
// rather than tracked per-entry (an intentional approximation — see
// DESIGN.md).
func (c *Cache) Put(key CacheKey, env outcome.Envelope) {
	keyStr := key.string()
	sh := c.shardFor(keyStr)
	tokens := tokensFor(key.Query)
	cost := estimateBytes(env)

	if sh.bytes.Add(int64(cost)) > cacheByteCeiling {
		sh.lru.Purge()
		sh.bytes.Store(int64(cost))
	}
	sh.lru.Add(keyStr, &cacheEntry{envelope: env, query: key.Query, filters: key.Filters, mode: key.Mode, mask: maskFor(tokens), bytes: cost})
}

func estimateBytes(env outcome.Envelope) int {
	n := 0
	for _, h := range env.Hits {
		n += len(h.SourcePath) + len(h.Title) + len(h.Snippet) + len(h.Preview) + len(h.Content) + 64
	}
	return n
}
