package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeLines(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.jsonl")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadLineAtReturnsOneIndexedLine(t *testing.T) {
	path := writeLines(t, "first", "second", "third")
	line, err := readLineAt(path, 2)
	require.NoError(t, err)
	require.Equal(t, "second", line)
}

func TestReadLineAtOutOfRangeIsUsageError(t *testing.T) {
	path := writeLines(t, "only")
	_, err := readLineAt(path, 5)
	require.Error(t, err)
}

func TestReadLineRangeClampsFromToOne(t *testing.T) {
	path := writeLines(t, "a", "b", "c", "d", "e")
	lines, err := readLineRange(path, -2, 2)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, "a", lines[0].Text)
	require.Equal(t, "b", lines[1].Text)
}

func TestReadLineRangeMissingFileIsUsageError(t *testing.T) {
	_, err := readLineRange(filepath.Join(t.TempDir(), "missing.jsonl"), 1, 1)
	require.Error(t, err)
}
