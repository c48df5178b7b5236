package ftsindex

import (
	"path/filepath"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesIndexAndSchemaHash(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	idx, rebuilt, err := Open(dir)
	require.NoError(t, err)
	require.True(t, rebuilt)
	defer idx.Close()
}

func TestIndexAndSearchMessage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "index")
	idx, _, err := Open(dir)
	require.NoError(t, err)
	defer idx.Close()

	err = idx.IndexMessage(1, Doc{
		Agent: "claude-code", SourceID: "local", OriginKind: "local",
		Title: "fix the cma-es optimizer", Content: "the cma-es optimizer diverges on high dimensions",
		CreatedAt: 1000,
	})
	require.NoError(t, err)

	query := bleve.NewMatchQuery("cma")
	req := bleve.NewSearchRequest(query)
	res, err := idx.Bleve().Search(req)
	require.NoError(t, err)
	require.Greater(t, len(res.Hits), 0)
}

func TestSchemaHashStableAcrossReopen(t *testing.T) {
	h1, err := SchemaHash()
	require.NoError(t, err)
	h2, err := SchemaHash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}
