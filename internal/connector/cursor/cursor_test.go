package cursor

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawwerks/cass/internal/connector"
)

func makeVscdb(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "state.vscdb")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE ItemTable (key TEXT PRIMARY KEY, value BLOB)`)
	require.NoError(t, err)

	data := chatData{Tabs: []chatTab{{
		TabID: "tab-1",
		Bubbles: []chatBubble{
			{Type: 1, Text: "how do I add retries?"},
			{Type: 2, Text: "wrap the call in a backoff loop"},
		},
	}}}
	blob, err := json.Marshal(data)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO ItemTable (key, value) VALUES (?, ?)`, chatDataKey, blob)
	require.NoError(t, err)
	return path
}

func TestScanCursorWorkspace(t *testing.T) {
	root := t.TempDir()
	wsDir := filepath.Join(root, "abc123")
	require.NoError(t, os.MkdirAll(wsDir, 0o755))
	makeVscdb(t, wsDir)

	c := NewCursor()
	res, err := c.Scan(connector.ScanContext{ScanRoots: []string{root}})
	require.NoError(t, err)
	require.Len(t, res.Conversations, 1)
	assert.Len(t, res.Conversations[0].Messages, 2)
	assert.Equal(t, "how do I add retries?", res.Conversations[0].Messages[0].Content)
}
