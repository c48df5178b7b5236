package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)

func TestParseTimeMsRelative(t *testing.T) {
	ms, err := parseTimeMs("-7d", fixedNow)
	require.NoError(t, err)
	require.Equal(t, fixedNow.AddDate(0, 0, -7).UnixMilli(), ms)

	ms, err = parseTimeMs("-24h", fixedNow)
	require.NoError(t, err)
	require.Equal(t, fixedNow.Add(-24*time.Hour).UnixMilli(), ms)
}

func TestParseTimeMsNamed(t *testing.T) {
	ms, err := parseTimeMs("today", fixedNow)
	require.NoError(t, err)
	require.Equal(t, startOfDay(fixedNow).UnixMilli(), ms)

	ms, err = parseTimeMs("yesterday", fixedNow)
	require.NoError(t, err)
	require.Equal(t, startOfDay(fixedNow.AddDate(0, 0, -1)).UnixMilli(), ms)

	ms, err = parseTimeMs("now", fixedNow)
	require.NoError(t, err)
	require.Equal(t, fixedNow.UnixMilli(), ms)
}

func TestParseTimeMsISO8601(t *testing.T) {
	ms, err := parseTimeMs("2026-01-15T00:00:00Z", fixedNow)
	require.NoError(t, err)
	want, _ := time.Parse(time.RFC3339, "2026-01-15T00:00:00Z")
	require.Equal(t, want.UnixMilli(), ms)
}

func TestParseTimeMsUSDate(t *testing.T) {
	ms, err := parseTimeMs("01/15/2026", fixedNow)
	require.NoError(t, err)
	require.Equal(t, startOfDay(time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)).UnixMilli(), ms)
}

func TestParseTimeMsMagnitudeDetection(t *testing.T) {
	seconds := int64(1735689600) // 2025-01-01T00:00:00Z
	ms, err := parseTimeMs("1735689600", fixedNow)
	require.NoError(t, err)
	require.Equal(t, seconds*1000, ms)

	msInput := int64(1735689600000)
	ms, err = parseTimeMs("1735689600000", fixedNow)
	require.NoError(t, err)
	require.Equal(t, msInput, ms)
}

func TestParseTimeMsEmptyIsUnbounded(t *testing.T) {
	ms, err := parseTimeMs("", fixedNow)
	require.NoError(t, err)
	require.Zero(t, ms)
}

func TestParseTimeMsInvalidIsUsageError(t *testing.T) {
	_, err := parseTimeMs("not-a-time", fixedNow)
	require.Error(t, err)
}

func TestResolveTimeRangeToday(t *testing.T) {
	from, to, err := resolveTimeRange("", "", 0, true, fixedNow)
	require.NoError(t, err)
	require.Equal(t, startOfDay(fixedNow).UnixMilli(), from)
	require.Zero(t, to)
}

func TestResolveTimeRangeDays(t *testing.T) {
	from, _, err := resolveTimeRange("", "", 3, false, fixedNow)
	require.NoError(t, err)
	require.Equal(t, fixedNow.Add(-3*24*time.Hour).UnixMilli(), from)
}

func TestResolveTimeRangeSinceUntil(t *testing.T) {
	from, to, err := resolveTimeRange("2026-01-01", "2026-01-31", 0, false, fixedNow)
	require.NoError(t, err)
	require.True(t, from < to)
}

func TestResolveTimeRangeRejectsInvertedRange(t *testing.T) {
	_, _, err := resolveTimeRange("2026-02-01", "2026-01-01", 0, false, fixedNow)
	require.Error(t, err)
}
