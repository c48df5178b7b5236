package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawwerks/cass/internal/config"
)

func TestDiagnoseStoreOnFreshPathIsOK(t *testing.T) {
	layout := config.Layout(t.TempDir())
	f := diagnoseStore(layout)
	require.True(t, f.OK)
	require.Equal(t, "store", f.Component)
}

func TestDiagnoseFTSOnFreshPathIsOK(t *testing.T) {
	layout := config.Layout(t.TempDir())
	f := diagnoseFTS(layout)
	require.True(t, f.OK)
	require.Equal(t, "fts_index", f.Component)
}

func TestDiagnoseStoreDetectsNonDatabaseFile(t *testing.T) {
	dir := t.TempDir()
	layout := config.Layout(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(layout.DBPath), 0o755))
	require.NoError(t, os.WriteFile(layout.DBPath, []byte("not a sqlite database"), 0o644))

	f := diagnoseStore(layout)
	require.False(t, f.OK)
	require.NotEmpty(t, f.Detail)
}
