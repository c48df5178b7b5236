package aider

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rawwerks/cass/internal/connector"
)

func TestScanAiderHistory(t *testing.T) {
	dir := t.TempDir()
	content := `# aider chat started at 2024-01-01 00:00:00

#### add error handling to parse.go

I'll add error handling now.

` + "```go\nfunc parse() error { return nil }\n```" + `

---
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, historyFileName), []byte(content), 0o644))

	c := &Connector{Roots: []string{dir}}
	d := c.Detect()
	require.True(t, d.Present)

	res, err := c.Scan(connector.ScanContext{ScanRoots: d.ScanRoots})
	require.NoError(t, err)
	require.Len(t, res.Conversations, 1)
	msgs := res.Conversations[0].Messages
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Contains(t, msgs[0].Content, "add error handling")
}
