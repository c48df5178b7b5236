package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawwerks/cass/internal/outcome"
)

func sampleEnvelope() outcome.Envelope {
	return outcome.Envelope{
		Hits: []outcome.Hit{
			{SourcePath: "/a.jsonl", LineNumber: 3, Agent: "claudecode", Score: 0.9, MatchType: "exact", Preview: "hello world"},
			{SourcePath: "/a.jsonl", LineNumber: 7, Agent: "claudecode", Score: 0.5, MatchType: "prefix", Preview: "hello there"},
			{SourcePath: "/b.jsonl", LineNumber: 1, Agent: "codex", Score: 0.4, MatchType: "substring", Snippet: "a snippet"},
		},
		Meta: outcome.Meta{RequestID: "r1", ElapsedMs: 5},
	}
}

func TestWriteJSONLEmitsHeaderThenOneHitPerLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEnvelopeTo(&buf, sampleEnvelope(), formatJSONL))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	var header struct {
		Meta outcome.Meta `json:"_meta"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &header))
	require.Equal(t, "r1", header.Meta.RequestID)

	var h outcome.Hit
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &h))
	require.Equal(t, "/a.jsonl", h.SourcePath)
}

func TestWriteCompactIsTabSeparated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEnvelopeTo(&buf, sampleEnvelope(), formatCompact))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	fields := strings.Split(lines[0], "\t")
	require.Len(t, fields, 6)
	require.Equal(t, "claudecode", fields[1])
}

func TestWriteSessionsDedupsPreservingFirstSeenOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEnvelopeTo(&buf, sampleEnvelope(), formatSessions))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Equal(t, []string{"/a.jsonl", "/b.jsonl"}, lines)
}

func TestWriteEnvelopeJSONIsIndented(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeEnvelopeTo(&buf, sampleEnvelope(), formatJSON))
	require.True(t, strings.HasPrefix(buf.String(), "{\n"))
}

func TestExitCodeForNilIsOK(t *testing.T) {
	require.Equal(t, int(outcome.CodeOK), exitCodeFor(nil))
}

func TestExitCodeForUsageError(t *testing.T) {
	err := outcome.Usage("fix your flags", "bad input")
	require.Equal(t, int(outcome.CodeUsage), exitCodeFor(err))
}
