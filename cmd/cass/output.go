package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/rawwerks/cass/internal/outcome"
)

// exitCodeFor maps a returned error to the process exit code spec.md §7
// mandates. Plain errors that never passed through the outcome taxonomy
// surface as KindUnknown (exit code 9).
func exitCodeFor(err error) int {
	if err == nil {
		return int(outcome.CodeOK)
	}
	return int(outcome.As(err).Code())
}

// robotFormat names one of the `--robot-format` output shapes (spec.md §6).
type robotFormat string

const (
	formatJSON     robotFormat = "json"
	formatJSONL    robotFormat = "jsonl"
	formatCompact  robotFormat = "compact"
	formatSessions robotFormat = "sessions"
)

// writeEnvelope renders env to stdout in the requested format. Structured
// output always goes to stdout; diagnostics go to stderr (spec.md §4.I).
func writeEnvelope(env outcome.Envelope, format robotFormat) error {
	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	return writeEnvelopeTo(w, env, format)
}

// writeEnvelopeTo renders env in the requested format to an arbitrary
// writer (used by writeEnvelope for stdout and by --trace-file to capture
// the same shape to disk).
func writeEnvelopeTo(w io.Writer, env outcome.Envelope, format robotFormat) error {
	switch format {
	case formatJSONL:
		return writeJSONL(w, env)
	case formatCompact:
		return writeCompact(w, env)
	case formatSessions:
		return writeSessions(w, env)
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	}
}

func writeJSONL(w io.Writer, env outcome.Envelope) error {
	header := struct {
		Meta outcome.Meta `json:"_meta"`
	}{Meta: env.Meta}
	if err := json.NewEncoder(w).Encode(header); err != nil {
		return err
	}
	for _, h := range env.Hits {
		if err := json.NewEncoder(w).Encode(h); err != nil {
			return err
		}
	}
	return nil
}

// writeCompact emits one tab-separated line per hit: score, agent,
// source_path, line_number, match_type, then the preview/snippet if present.
func writeCompact(w io.Writer, env outcome.Envelope) error {
	for _, h := range env.Hits {
		text := h.Preview
		if h.Snippet != "" {
			text = h.Snippet
		}
		if _, err := fmt.Fprintf(w, "%.4f\t%s\t%s\t%d\t%s\t%s\n",
			h.Score, h.Agent, h.SourcePath, h.LineNumber, h.MatchType, text); err != nil {
			return err
		}
	}
	return nil
}

// writeSessions emits one unique source_path per line, preserving first-seen
// order (spec.md §6: "Sessions format: one unique source_path per line").
func writeSessions(w io.Writer, env outcome.Envelope) error {
	seen := make(map[string]bool, len(env.Hits))
	for _, h := range env.Hits {
		if seen[h.SourcePath] {
			continue
		}
		seen[h.SourcePath] = true
		if _, err := fmt.Fprintln(w, h.SourcePath); err != nil {
			return err
		}
	}
	return nil
}

// printHitsHuman renders a plain, human-readable result listing for
// terminals (the default when --json/--robot isn't set).
func printHitsHuman(env outcome.Envelope) {
	if len(env.Hits) == 0 {
		fmt.Println("No matches.")
		return
	}
	for i, h := range env.Hits {
		fmt.Printf("%2d. [%.3f] %s:%d  (%s, %s)\n", i+1, h.Score, h.SourcePath, h.LineNumber, h.Agent, h.MatchType)
		text := h.Preview
		if h.Snippet != "" {
			text = h.Snippet
		}
		if text != "" {
			fmt.Printf("    %s\n", text)
		}
	}
	if env.Meta.WildcardFallback {
		fmt.Println("(fell back to a fuzzy substring match — few exact hits)")
	}
	fmt.Printf("\n%d hit(s) in %dms\n", len(env.Hits), env.Meta.ElapsedMs)
}
