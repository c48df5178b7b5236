package main

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rawwerks/cass/internal/outcome"
)

// relativeTimePattern matches spec.md §6's relative time forms: -7d, -24h,
// -1w (a leading dash, an integer magnitude, then a d/h/w/m unit).
var relativeTimePattern = regexp.MustCompile(`^-(\d+)([dhwm])$`)

// parseTimeMs normalizes one of spec.md §6's acceptable time-input forms to
// integer milliseconds UTC: relative (-7d/-24h/-1w), named (now/today/
// yesterday), ISO-8601, US-style dates, or a Unix timestamp in seconds or
// milliseconds (magnitude-detected).
func parseTimeMs(input string, now time.Time) (int64, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0, nil
	}

	if m := relativeTimePattern.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		var d time.Duration
		switch m[2] {
		case "h":
			d = time.Duration(n) * time.Hour
		case "d":
			d = time.Duration(n) * 24 * time.Hour
		case "w":
			d = time.Duration(n) * 7 * 24 * time.Hour
		case "m":
			d = time.Duration(n) * 30 * 24 * time.Hour
		}
		return now.Add(-d).UnixMilli(), nil
	}

	switch strings.ToLower(s) {
	case "now":
		return now.UnixMilli(), nil
	case "today":
		return startOfDay(now).UnixMilli(), nil
	case "yesterday":
		return startOfDay(now.AddDate(0, 0, -1)).UnixMilli(), nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return magnitudeDetectMs(n), nil
	}

	for _, layout := range []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
		"01/02/2006",
		"01-02-2006",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC().UnixMilli(), nil
		}
	}

	return 0, outcome.Usage("use a relative form (-7d), a named form (today/yesterday), ISO-8601, a US date, or a Unix timestamp",
		"unrecognized time value %q", input)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// magnitudeDetectMs distinguishes Unix seconds from Unix milliseconds by
// magnitude: seconds-since-epoch values for any plausible date are below
// 10^12, millisecond values are above it (spec.md §6: "magnitude-detected").
func magnitudeDetectMs(n int64) int64 {
	const secondsMsBoundary = 1_000_000_000_000
	if n < secondsMsBoundary {
		return n * 1000
	}
	return n
}

// resolveTimeRange folds --since/--until/--days/--today into a (from, to)
// ms-epoch pair. --today and --days are shorthand that override --since.
func resolveTimeRange(since, until string, days int, today bool, now time.Time) (int64, int64, error) {
	var from, to int64
	var err error

	switch {
	case today:
		from = startOfDay(now).UnixMilli()
	case days > 0:
		from = now.Add(-time.Duration(days) * 24 * time.Hour).UnixMilli()
	case since != "":
		from, err = parseTimeMs(since, now)
		if err != nil {
			return 0, 0, err
		}
	}

	if until != "" {
		to, err = parseTimeMs(until, now)
		if err != nil {
			return 0, 0, err
		}
	}

	if from != 0 && to != 0 && from > to {
		return 0, 0, outcome.Usage("swap --since and --until", "time range is empty: %s is after %s", since, until)
	}
	return from, to, nil
}
