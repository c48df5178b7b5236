package model

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// canonicalTruncationBudget is the fixed character budget canonicalize
// truncates to. Frozen here for reproducibility — invariant 3 in spec.md §8
// requires canonicalize to be byte-identical across runs, so this value
// must never change without a full reindex.
const canonicalTruncationBudget = 4096

var (
	fencedBlockRE = regexp.MustCompile("(?s)```.*?```")
	inlineCodeRE  = regexp.MustCompile("`[^`\n]*`")
	whitespaceRE  = regexp.MustCompile(`[ \t]+`)
	paragraphRE   = regexp.MustCompile(`\n{2,}`)
	lowSignalRE   = regexp.MustCompile(`[^\p{L}\p{N}\s.,!?'"-]+`)
)

// Canonicalize produces stable, deterministic text for embedding and
// hashing. Steps, in order: NFC normalization, fenced/inline code stripping
// (the surrounding prose is kept), low-signal noise filtering, whitespace
// collapsing with paragraph breaks preserved, and truncation to a fixed
// character budget. The result is byte-identical across runs for the same
// input.
func Canonicalize(text string) string {
	s := norm.NFC.String(text)

	s = fencedBlockRE.ReplaceAllString(s, " ")
	s = inlineCodeRE.ReplaceAllString(s, " ")

	s = lowSignalRE.ReplaceAllString(s, " ")

	paragraphs := paragraphRE.Split(s, -1)
	for i, p := range paragraphs {
		p = whitespaceRE.ReplaceAllString(p, " ")
		paragraphs[i] = strings.TrimSpace(p)
	}
	s = strings.Join(nonEmpty(paragraphs), "\n\n")
	s = strings.TrimSpace(s)

	if len(s) > canonicalTruncationBudget {
		s = truncateRunes(s, canonicalTruncationBudget)
	}

	return s
}

func nonEmpty(ss []string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

// truncateRunes cuts s to at most n runes, preferring a whitespace boundary
// so we never split mid-word.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
		cut = cut[:i]
	}
	return cut
}

// ContentHash computes the deterministic hash of a message per spec.md §3:
// SHA-256(role ∥ content ∥ created_at).
func ContentHash(role Role, content string, createdAtMs int64) string {
	h := sha256.New()
	h.Write([]byte(role))
	h.Write([]byte(content))
	h.Write([]byte(strconv.FormatInt(createdAtMs, 10)))
	return hex.EncodeToString(h.Sum(nil))
}
