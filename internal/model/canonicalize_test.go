package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeDeterministic(t *testing.T) {
	text := "Hello   world.\n\n\nHere's some `inline` code and:\n```go\nfunc f() {}\n```\nMore prose."
	a := Canonicalize(text)
	b := Canonicalize(text)
	require.Equal(t, a, b)
	assert.NotContains(t, a, "```")
	assert.NotContains(t, a, "func f()")
}

func TestCanonicalizeTruncationBudget(t *testing.T) {
	long := strings.Repeat("word ", 2000)
	out := Canonicalize(long)
	assert.LessOrEqual(t, len([]rune(out)), canonicalTruncationBudget)
}

func TestCanonicalizePreservesParagraphs(t *testing.T) {
	text := "First paragraph.\n\nSecond paragraph."
	out := Canonicalize(text)
	assert.Contains(t, out, "\n\n")
}

func TestContentHashDeterministic(t *testing.T) {
	h1 := ContentHash(RoleUser, "hello", 1000)
	h2 := ContentHash(RoleUser, "hello", 1000)
	require.Equal(t, h1, h2)

	h3 := ContentHash(RoleAssistant, "hello", 1000)
	assert.NotEqual(t, h1, h3)
}

func TestNormalizeTimestampSecondsHeuristic(t *testing.T) {
	// 10-digit seconds, e.g. late 2023.
	seconds := 1_700_000_000.0
	ms := NormalizeTimestampSeconds(seconds)
	assert.Equal(t, int64(1_700_000_000_000), ms)

	alreadyMs := 1_700_000_000_000.0
	assert.Equal(t, int64(1_700_000_000_000), NormalizeTimestampSeconds(alreadyMs))
}

func TestNormalizeTimestampStringISO(t *testing.T) {
	ms := NormalizeTimestampString("2023-11-14T22:13:20Z")
	assert.Equal(t, int64(1_700_000_000_000), ms)
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, RoleUser, NormalizeRole("human"))
	assert.Equal(t, RoleAssistant, NormalizeRole("model"))
	assert.Equal(t, RoleOther, NormalizeRole("whatever"))
}
