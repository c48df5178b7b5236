package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rawwerks/cass/internal/config"
	"github.com/rawwerks/cass/internal/outcome"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Report whether the data directory looks usable, in under 50ms",
	RunE:  runHealth,
}

// healthReport is deliberately cheap to produce: stat calls only, no
// store.Open or ftsindex.Open, so the <50ms probe budget (spec.md §6)
// survives even against a large on-disk index.
type healthReport struct {
	DataDir      string `json:"data_dir"`
	DBPresent    bool   `json:"db_present"`
	IndexPresent bool   `json:"index_present"`
	LockHeld     bool   `json:"lock_held"`
	Healthy      bool   `json:"healthy"`
}

func runHealth(cmd *cobra.Command, args []string) error {
	start := time.Now()
	layout := config.Layout(resolvedDataDir())

	report := healthReport{DataDir: layout.Root}
	if info, err := os.Stat(layout.DBPath); err == nil && !info.IsDir() {
		report.DBPresent = true
	}
	if info, err := os.Stat(layout.IndexDir); err == nil && info.IsDir() {
		report.IndexPresent = true
	}
	report.LockHeld = lockFileFresh(layout.LockPath)
	report.Healthy = report.DBPresent && report.IndexPresent

	elapsed := time.Since(start).Milliseconds()

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			healthReport
			ElapsedMs int64 `json:"elapsed_ms"`
		}{report, elapsed}); err != nil {
			return err
		}
	} else {
		fmt.Printf("data dir:     %s\n", report.DataDir)
		fmt.Printf("db present:   %v\n", report.DBPresent)
		fmt.Printf("index present:%v\n", report.IndexPresent)
		fmt.Printf("lock held:    %v\n", report.LockHeld)
		fmt.Printf("elapsed:      %dms\n", elapsed)
	}

	if !report.Healthy {
		return outcome.New(outcome.KindHealthFail, "run `cass index` to initialize the store and index", "data directory %s is missing its store or FTS index", layout.Root)
	}
	return nil
}

// lockFileFresh reports whether indexer.lock exists; it does not attempt
// flock's own byte-range lock probe (that would require opening the file
// and risks contending with a live indexer), just presence.
func lockFileFresh(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
