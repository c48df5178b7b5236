package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadSourcesMissingFileIsEmpty(t *testing.T) {
	sources, err := LoadSources(filepath.Join(t.TempDir(), "sources.toml"))
	require.NoError(t, err)
	require.Empty(t, sources)
}

func TestLoadSourcesParsesSourceAndRewriteTables(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.toml")
	doc := `
[[source]]
source_id = "laptop"
kind = "remote"
host_label = "laptop.local"
mirror_root = "/data/remotes/laptop/mirror"
connectors = ["claude-code"]

[[source.path_rewrite]]
from_prefix = "/Users/alice"
to_prefix = "/home/alice"
agents_filter = ["claude-code"]
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	sources, err := LoadSources(path)
	require.NoError(t, err)
	require.Len(t, sources, 1)

	src := sources[0]
	require.Equal(t, "laptop", src.SourceID)
	require.Equal(t, "remote", src.Kind)
	require.Equal(t, []string{"claude-code"}, src.Connectors)

	rules := src.Rules()
	require.Len(t, rules, 1)
	require.Equal(t, "/Users/alice", rules[0].FromPrefix)
	require.Equal(t, "/home/alice", rules[0].ToPrefix)
	require.Equal(t, []string{"claude-code"}, rules[0].AgentsFilter)
}

func TestLoadSourcesMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.toml")
	require.NoError(t, os.WriteFile(path, []byte("not valid [[[ toml"), 0o644))

	_, err := LoadSources(path)
	require.Error(t, err)
}
