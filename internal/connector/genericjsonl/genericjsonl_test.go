package genericjsonl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawwerks/cass/internal/connector"
)

func TestScanGenericSession(t *testing.T) {
	dir := t.TempDir()
	lines := `{"sessionId":"s1","role":"user","content":"add unit tests","ts":1700000000}
{"sessionId":"s1","role":"assistant","content":"writing tests now","ts":1700000005}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "s1.jsonl"), []byte(lines), 0o644))

	c := New("continue", FieldMap{RoleKey: "role", ContentKey: "content", TimestampKey: "ts", SessionIDKey: "sessionId"}, nil)
	c.Dir = dir

	res, err := c.Scan(connector.ScanContext{ScanRoots: []string{dir}})
	require.NoError(t, err)
	require.Len(t, res.Conversations, 1)
	assert.Equal(t, "s1", res.Conversations[0].Conversation.ExternalID)
	assert.Len(t, res.Conversations[0].Messages, 2)
}
