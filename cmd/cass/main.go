// Package main implements the cass CLI: a local-first, offline search
// engine over coding-agent session logs (spec.md §6).
//
// # File Index
//
//   - main.go          - entry point, rootCmd, global flags, bootstrap
//   - bootstrap.go     - shared store/index/planner opening helpers
//   - output.go        - envelope rendering (robot formats) and exit codes
//   - timeparse.go     - --since/--until/--days/--today normalization
//   - cmd_index.go     - `index` subcommand
//   - cmd_search.go    - `search` subcommand
//   - cmd_view.go      - `view` and `expand` subcommands
//   - cmd_health.go    - `health` subcommand
//   - cmd_doctor.go    - `doctor` subcommand
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/rawwerks/cass/internal/logging"
)

var (
	flagDataDir  string
	flagVerbose  bool
	flagJSON     bool
	flagTimeout  string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "cass",
	Short: "Offline full-text and semantic search over coding-agent session logs",
	Long: `cass indexes conversation logs left behind by coding agents (Claude Code,
Codex, Cursor, Aider, Zed, and others) into a local durable store, a bleve
full-text index, and an optional vector index, then serves fast lexical and
semantic search over them entirely offline.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if flagVerbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}

		dataDir := resolvedDataDir()
		logging.Configure(dataDir, flagVerbose, nil, logging.LevelInfo)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $CASS_DATA_DIR or ~/.cass)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit the structured JSON envelope instead of human-readable text")
	rootCmd.PersistentFlags().StringVar(&flagTimeout, "timeout", "", "operation timeout (e.g. 30s, 2m); empty means no deadline")

	rootCmd.AddCommand(
		indexCmd,
		searchCmd,
		viewCmd,
		expandCmd,
		healthCmd,
		doctorCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
