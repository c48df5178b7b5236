package query

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawwerks/cass/internal/outcome"
)

func TestCacheExactKeyHit(t *testing.T) {
	c := NewCache()
	key := CacheKey{Query: "optimizer bug", Mode: ModeBalanced}
	env := outcome.Envelope{Hits: []outcome.Hit{{SourcePath: "a"}}}
	c.Put(key, env)

	got, hit, shortfall := c.Get(key)
	require.True(t, hit)
	require.False(t, shortfall)
	require.Equal(t, "a", got.Hits[0].SourcePath)
}

func TestCacheMissOnUnseenKey(t *testing.T) {
	c := NewCache()
	_, hit, shortfall := c.Get(CacheKey{Query: "never seen", Mode: ModeBalanced})
	require.False(t, hit)
	require.False(t, shortfall)
}

func TestCacheExtensionShortfallWhenMaskMissesNewToken(t *testing.T) {
	c := NewCache()
	base := CacheKey{Query: "optimizer bug", Mode: ModeBalanced}
	c.Put(base, outcome.Envelope{Hits: []outcome.Hit{{SourcePath: "a"}}})

	ext := CacheKey{Query: "optimizer bug crash", Mode: ModeBalanced}
	_, hit, shortfall := c.Get(ext)
	// "crash" was never part of the cached query's token set, so this must
	// surface a shortfall rather than silently reusing the stale result.
	require.False(t, hit)
	require.True(t, shortfall)
}

func TestCacheShorterQueryDoesNotReuseLongerEntry(t *testing.T) {
	c := NewCache()
	base := CacheKey{Query: "optimizer bug crash", Mode: ModeBalanced}
	c.Put(base, outcome.Envelope{Hits: []outcome.Hit{{SourcePath: "a"}}})

	// The new query is shorter than the cached one, so it does not extend
	// it, and this must miss rather than incorrectly reuse cached results.
	other := CacheKey{Query: "optimizer bug", Mode: ModeBalanced}
	_, hit, _ := c.Get(other)
	require.False(t, hit)
}

func TestCacheDifferentFiltersDoNotCollide(t *testing.T) {
	c := NewCache()
	keyA := CacheKey{Query: "optimizer", Filters: Filters{Agent: "claude-code"}, Mode: ModeBalanced}
	keyB := CacheKey{Query: "optimizer", Filters: Filters{Agent: "codex"}, Mode: ModeBalanced}
	c.Put(keyA, outcome.Envelope{Hits: []outcome.Hit{{SourcePath: "a"}}})

	_, hit, _ := c.Get(keyB)
	require.False(t, hit)
}

func TestCacheExtensionDoesNotCrossFilters(t *testing.T) {
	c := NewCache()
	base := CacheKey{Query: "optimizer", Filters: Filters{Agent: "codex"}, Mode: ModeBalanced}
	c.Put(base, outcome.Envelope{Hits: []outcome.Hit{{SourcePath: "codex-only.jsonl"}}})

	// Same query prefix, same shard-eligible string, but a different agent
	// filter: must never be served codex's cached result set.
	ext := CacheKey{Query: "optimizer bug", Filters: Filters{Agent: "claude-code"}, Mode: ModeBalanced}
	_, hit, _ := c.Get(ext)
	require.False(t, hit, "prefix extension must not cross filter boundaries")
}

func TestCacheExtensionDoesNotCrossMode(t *testing.T) {
	c := NewCache()
	base := CacheKey{Query: "optimizer", Mode: ModeNewest}
	c.Put(base, outcome.Envelope{Hits: []outcome.Hit{{SourcePath: "a"}}})

	ext := CacheKey{Query: "optimizer bug", Mode: ModeOldest}
	_, hit, _ := c.Get(ext)
	require.False(t, hit, "prefix extension must not cross ranking-mode boundaries")
}

func TestTokenBitIsStableAndBounded(t *testing.T) {
	b1 := tokenBit("optimizer")
	b2 := tokenBit("optimizer")
	require.Equal(t, b1, b2)
	require.Less(t, b1, uint(cacheMaskBits))
}
