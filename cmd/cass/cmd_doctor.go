package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rawwerks/cass/internal/config"
	"github.com/rawwerks/cass/internal/ftsindex"
	"github.com/rawwerks/cass/internal/orchestrator"
	"github.com/rawwerks/cass/internal/outcome"
	"github.com/rawwerks/cass/internal/store"
)

var (
	doctorFix          bool
	doctorForceRebuild bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose and optionally repair a broken data directory",
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "rename aside and recreate a store whose schema version is incompatible; corrupt files and the vector index are left as they are")
	doctorCmd.Flags().BoolVar(&doctorForceRebuild, "force-rebuild", false, "discard all derived data and re-index from scratch (implies --fix)")
}

type doctorFinding struct {
	Component string `json:"component"`
	OK        bool   `json:"ok"`
	Detail    string `json:"detail,omitempty"`
	Repaired  bool   `json:"repaired,omitempty"`
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := withTimeout(cmd.Context())
	defer cancel()

	layout := config.Layout(resolvedDataDir())
	if doctorForceRebuild {
		doctorFix = true
	}

	var findings []doctorFinding

	if doctorForceRebuild {
		for _, p := range []string{layout.DBPath, layout.IndexDir, layout.VectorDir} {
			if err := os.RemoveAll(p); err != nil {
				return outcome.Wrap(outcome.KindUnknown, "check file permissions under the data directory", err)
			}
		}
		findings = append(findings, doctorFinding{Component: "store", OK: true, Detail: "removed for full rebuild", Repaired: true})
		findings = append(findings, doctorFinding{Component: "fts_index", OK: true, Detail: "removed for full rebuild", Repaired: true})
		findings = append(findings, doctorFinding{Component: "vector_index", OK: true, Detail: "removed for full rebuild", Repaired: true})
	} else {
		findings = append(findings, diagnoseStore(layout))
		findings = append(findings, diagnoseFTS(layout))
	}

	if doctorForceRebuild {
		if err := rebuildEverything(ctx, layout); err != nil {
			return outcome.Wrap(outcome.KindUnknown, "re-run with --verbose for detail", err)
		}
		findings = append(findings, doctorFinding{Component: "reindex", OK: true, Detail: "full re-index completed"})
	}

	healthy := true
	for _, f := range findings {
		if !f.OK && !f.Repaired {
			healthy = false
		}
	}

	if flagJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Findings []doctorFinding `json:"findings"`
			Healthy  bool            `json:"healthy"`
		}{findings, healthy}); err != nil {
			return err
		}
	} else {
		for _, f := range findings {
			status := "ok"
			if !f.OK {
				status = "FAIL"
			}
			if f.Repaired {
				status += " (repaired)"
			}
			fmt.Printf("%-14s %-16s %s\n", f.Component, status, f.Detail)
		}
	}

	if !healthy {
		return outcome.New(outcome.KindHealthFail, "run `cass doctor --fix --force-rebuild`", "data directory is unhealthy")
	}
	return nil
}

func diagnoseStore(layout config.DataLayout) doctorFinding {
	st, err := store.Open(layout.DBPath)
	if err == nil {
		st.Close()
		return doctorFinding{Component: "store", OK: true}
	}
	if incompat, ok := asIncompatible(err); ok {
		if doctorFix {
			res, rerr := store.RebuildIncompatible(layout.DBPath)
			if rerr != nil {
				return doctorFinding{Component: "store", OK: false, Detail: rerr.Error()}
			}
			return doctorFinding{Component: "store", OK: true, Repaired: true,
				Detail: fmt.Sprintf("backed up to %s (%v)", res.BackupPath, incompat)}
		}
		return doctorFinding{Component: "store", OK: false, Detail: incompat.Error()}
	}
	return doctorFinding{Component: "store", OK: false, Detail: err.Error()}
}

func diagnoseFTS(layout config.DataLayout) doctorFinding {
	idx, rebuilt, err := ftsindex.Open(layout.IndexDir)
	if err != nil {
		return doctorFinding{Component: "fts_index", OK: false, Detail: err.Error()}
	}
	idx.Close()
	if rebuilt {
		return doctorFinding{Component: "fts_index", OK: true, Repaired: true, Detail: "schema mismatch triggered an automatic rebuild"}
	}
	return doctorFinding{Component: "fts_index", OK: true}
}

// rebuildEverything re-opens a fresh store and FTS index at layout's paths
// (already cleared by the caller) and runs one full connector scan, mirroring
// `cass index --full --force-rebuild`.
func rebuildEverything(ctx context.Context, layout config.DataLayout) error {
	cfg, err := config.Load(layout.Root)
	if err != nil {
		return err
	}

	lock, err := acquireIndexerLock(layout)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := store.Open(layout.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	fts, _, err := ftsindex.Open(layout.IndexDir)
	if err != nil {
		return err
	}
	defer fts.Close()

	orc := orchestrator.New(cfg, layout, st, fts, orchestrator.DefaultConnectors(nil), 0)
	_, err = orc.RunFull(ctx)
	if err != nil {
		return err
	}

	return rebuildVectorIndex(ctx, cfg, layout, st)
}
