package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawwerks/cass/internal/connector"
	"github.com/rawwerks/cass/internal/model"
)

func TestRewriteWorkspacePathAppliesMatchingPrefix(t *testing.T) {
	rules := []model.PathRewriteRule{{FromPrefix: "/Users/alice", ToPrefix: "/home/alice"}}
	got := rewriteWorkspacePath(rules, "zed", "/Users/alice/proj")
	require.Equal(t, "/home/alice/proj", got)
}

func TestRewriteWorkspacePathRespectsAgentsFilter(t *testing.T) {
	rules := []model.PathRewriteRule{{FromPrefix: "/Users/alice", ToPrefix: "/home/alice", AgentsFilter: []string{"codex"}}}
	got := rewriteWorkspacePath(rules, "zed", "/Users/alice/proj")
	require.Equal(t, "/Users/alice/proj", got, "rule scoped to codex should not apply to zed")
}

func TestRewriteWorkspacePathNoMatchIsUnchanged(t *testing.T) {
	rules := []model.PathRewriteRule{{FromPrefix: "/Users/bob", ToPrefix: "/home/bob"}}
	got := rewriteWorkspacePath(rules, "zed", "/Users/alice/proj")
	require.Equal(t, "/Users/alice/proj", got)
}

// TestRunFullScansConfiguredRemoteSource writes a sources.toml registering
// one remote source and confirms its conversations are ingested with
// provenance pointing at that source, its own workspace path rewritten, and
// the zed connector scanned under the mirror root rather than this
// machine's own ~/.config/zed/conversations.
func TestRunFullScansConfiguredRemoteSource(t *testing.T) {
	dir := t.TempDir()
	sourcesDoc := `
[[source]]
source_id = "laptop"
kind = "remote"
host_label = "laptop.local"
mirror_root = "` + filepath.ToSlash(filepath.Join(dir, "mirror")) + `"
connectors = ["zed"]

[[source.path_rewrite]]
from_prefix = "/Users/alice"
to_prefix = "/home/alice"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sources.toml"), []byte(sourcesDoc), 0o644))

	remoteConv := sampleConversation("remote-session", 5000)
	remoteConv.Conversation.Metadata["workspace"] = "/Users/alice/proj"
	remoteConv.Conversation.Provenance = model.Provenance{SourceID: "laptop", OriginKind: model.OriginRemote, OriginHost: "laptop.local"}

	fc := &fakeConnector{slug: "zed", conversations: []connector.ParsedConversation{remoteConv}}

	orch, st, _ := newTestOrchestrator(t, []connector.Connector{fc})
	report, err := orch.RunFull(context.Background())
	require.NoError(t, err)
	require.False(t, report.Partial())
	require.Equal(t, 1, fc.scanCalls)

	var workspacePath string
	require.NoError(t, st.DB().QueryRow(`SELECT path FROM workspaces WHERE path = '/home/alice/proj'`).Scan(&workspacePath))
	require.Equal(t, "/home/alice/proj", workspacePath)

	var sourceKind string
	require.NoError(t, st.DB().QueryRow(`SELECT kind FROM sources WHERE source_id = 'laptop'`).Scan(&sourceKind))
	require.Equal(t, "remote", sourceKind)
}
