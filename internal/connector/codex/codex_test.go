package codex

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawwerks/cass/internal/connector"
	"github.com/rawwerks/cass/internal/model"
)

func TestScanCodexSession(t *testing.T) {
	dir := t.TempDir()
	dateDir := filepath.Join(dir, "2024-01-01")
	require.NoError(t, os.MkdirAll(dateDir, 0o755))

	lines := `{"type":"session_meta","id":"sess-9","cwd":"/work/p"}
{"role":"user","content":"implement caching","timestamp":"2024-01-01T00:00:00Z"}
{"role":"assistant","content":"adding an LRU cache","timestamp":"2024-01-01T00:00:05Z"}
{"type":"tool_call","tool_name":"apply_patch","tool_input":{"file":"cache.go"},"timestamp":"2024-01-01T00:00:06Z"}
`
	path := filepath.Join(dateDir, "sess-9.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o644))

	c := &Connector{Dir: dir}
	res, err := c.Scan(connector.ScanContext{
		ScanRoots:  []string{dir},
		Provenance: model.Provenance{SourceID: "local", OriginKind: model.OriginLocal},
	})
	require.NoError(t, err)
	require.Len(t, res.Conversations, 1)

	conv := res.Conversations[0]
	assert.Equal(t, "sess-9", conv.Conversation.ExternalID)
	require.Len(t, conv.Messages, 3)
	assert.Contains(t, conv.Messages[2].Content, "[Tool: apply_patch]")
}
