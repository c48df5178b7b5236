package zed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawwerks/cass/internal/connector"
)

func TestScanZedConversation(t *testing.T) {
	dir := t.TempDir()
	doc := `{
		"id": "conv-1",
		"summary": "refactor the parser module",
		"workspace_path": "/work/p",
		"messages": [
			{"role": "user", "text": "refactor parser.rs", "timestamp": "2024-01-01T00:00:00Z"},
			{"role": "assistant", "text": "splitting into smaller functions", "timestamp": "2024-01-01T00:00:05Z"}
		]
	}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conv-1.json"), []byte(doc), 0o644))

	c := &Connector{Dir: dir}
	res, err := c.Scan(connector.ScanContext{ScanRoots: []string{dir}})
	require.NoError(t, err)
	require.Len(t, res.Conversations, 1)
	assert.Equal(t, "conv-1", res.Conversations[0].Conversation.ExternalID)
	assert.Len(t, res.Conversations[0].Messages, 2)
}
