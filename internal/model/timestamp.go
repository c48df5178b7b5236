package model

import (
	"strconv"
	"strings"
	"time"
)

// NormalizeTimestampSeconds applies the magnitude heuristic from spec.md
// §4.B: a numeric value with the magnitude of 10-digit seconds is
// multiplied by 1000; values already in millisecond range pass through.
func NormalizeTimestampSeconds(v float64) int64 {
	if v == 0 {
		return 0
	}
	// 10-digit seconds are in [1e9, 1e10); ms values in that window would be
	// ~30 years, which "10-digit seconds" values already cover — so a raw
	// magnitude under 1e12 is treated as seconds, else as milliseconds.
	if v < 1e12 {
		return int64(v * 1000)
	}
	return int64(v)
}

// NormalizeTimestampString parses a timestamp string into integer
// milliseconds UTC. It accepts strict ISO-8601 first, then falls back to
// treating the string as a bare Unix seconds or milliseconds integer using
// the same magnitude heuristic as NormalizeTimestampSeconds.
func NormalizeTimestampString(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.999999",
		"2006-01-02 15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().UnixMilli()
		}
	}

	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return NormalizeTimestampSeconds(n)
	}

	return 0
}
