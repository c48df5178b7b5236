package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseBareTerm(t *testing.T) {
	n, err := Parse("optimizer")
	require.NoError(t, err)
	require.Equal(t, NodeTerm, n.Kind)
	require.Equal(t, "optimizer", n.Value)
}

func TestParsePhrase(t *testing.T) {
	n, err := Parse(`"cma-es bug"`)
	require.NoError(t, err)
	require.Equal(t, NodePhrase, n.Kind)
	require.Equal(t, "cma-es bug", n.Value)
}

func TestParsePrefixSuffixSubstring(t *testing.T) {
	cases := map[string]NodeKind{
		"optim*":   NodePrefix,
		"*izer":    NodeSuffix,
		"*optim*":  NodeSubstring,
	}
	for input, want := range cases {
		n, err := Parse(input)
		require.NoError(t, err)
		require.Equal(t, want, n.Kind, input)
	}
}

func TestParseImplicitAnd(t *testing.T) {
	n, err := Parse("optimizer bug")
	require.NoError(t, err)
	require.Equal(t, NodeAnd, n.Kind)
	require.Len(t, n.Children, 2)
}

func TestParseExplicitAndOr(t *testing.T) {
	n, err := Parse("optimizer AND bug OR crash")
	require.NoError(t, err)
	require.Equal(t, NodeOr, n.Kind)
	require.Len(t, n.Children, 2)
	require.Equal(t, NodeAnd, n.Children[0].Kind)
}

func TestParseNotPrefixSugar(t *testing.T) {
	n, err := Parse("-deprecated")
	require.NoError(t, err)
	require.Equal(t, NodeNot, n.Kind)
	require.Equal(t, NodeTerm, n.Children[0].Kind)
	require.Equal(t, "deprecated", n.Children[0].Value)
}

func TestParseNotKeyword(t *testing.T) {
	n, err := Parse("optimizer NOT deprecated")
	require.NoError(t, err)
	require.Equal(t, NodeAnd, n.Kind)
	require.Equal(t, NodeNot, n.Children[1].Kind)
}

func TestParseNegatedWildcard(t *testing.T) {
	n, err := Parse("-optim*")
	require.NoError(t, err)
	require.Equal(t, NodeNot, n.Kind)
	require.Equal(t, NodePrefix, n.Children[0].Kind)
	require.Equal(t, "optim", n.Children[0].Value)
}

func TestParseParentheses(t *testing.T) {
	n, err := Parse("(optimizer OR solver) AND bug")
	require.NoError(t, err)
	require.Equal(t, NodeAnd, n.Kind)
	require.Equal(t, NodeOr, n.Children[0].Kind)
}

func TestParsePrecedenceNotBeforeAndBeforeOr(t *testing.T) {
	n, err := Parse("a OR b AND NOT c")
	require.NoError(t, err)
	require.Equal(t, NodeOr, n.Kind)
	require.Equal(t, NodeAnd, n.Children[1].Kind)
	require.Equal(t, NodeNot, n.Children[1].Children[1].Kind)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("")
	require.Error(t, err)

	_, err = Parse(`"unterminated`)
	require.Error(t, err)

	_, err = Parse("optimizer AND")
	require.Error(t, err)

	_, err = Parse("optimizer)")
	require.Error(t, err)

	_, err = Parse("(optimizer")
	require.Error(t, err)
}
