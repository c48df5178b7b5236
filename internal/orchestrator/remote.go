package orchestrator

import (
	"path/filepath"
	"strings"

	"github.com/rawwerks/cass/internal/config"
	"github.com/rawwerks/cass/internal/logging"
	"github.com/rawwerks/cass/internal/model"
)

// homeRootSuffix names, for each connector whose default root is computed
// relative to the user's home directory, the path under that home directory.
// A mirrored remote tree (spec.md §6's remotes/<source_id>/mirror/...)
// preserves the remote's own home-relative layout, so the same suffix
// locates that connector's logs under a source's MirrorRoot. aider (scans
// the current workspace, not a home-rooted log directory) and the generic
// markdown fallback (opt-in, caller-supplied roots) have no fixed suffix
// and are excluded from remote scanning.
var homeRootSuffix = map[string]string{
	"claude-code": filepath.Join(".claude", "projects"),
	"codex":       filepath.Join(".codex", "sessions"),
	"cursor":      filepath.Join(".config", "Cursor", "User", "workspaceStorage"),
	"windsurf":    filepath.Join(".config", "Windsurf", "User", "workspaceStorage"),
	"copilot_chat": filepath.Join(".config", "Code", "User", "workspaceStorage"),
	"continue":    filepath.Join(".continue", "sessions"),
	"opencode":    filepath.Join(".local", "share", "opencode", "sessions"),
	"amp":         filepath.Join(".amp", "logs"),
	"zed":         filepath.Join(".config", "zed", "conversations"),
}

// loadSources reads layout.SourcesToml, logging and discarding a parse
// failure rather than aborting the whole run — a malformed sources.toml
// should not block local ingestion.
func loadSources(layout config.DataLayout) []config.SourceConfig {
	sources, err := config.LoadSources(layout.SourcesToml)
	if err != nil {
		logging.Get(logging.CategoryOrchestrator).Warn("ignoring sources.toml: %v", err)
		return nil
	}
	return sources
}

// buildRemoteJobs turns each registered remote SourceConfig into one
// scanJob per home-rooted connector this orchestrator was given, pointed at
// that source's mirrored
// tree instead of this machine's own log directories. Actually fetching
// the remote tree into the mirror is out of scope (spec.md's Non-goals);
// this only scans whatever is already there.
func (o *Orchestrator) buildRemoteJobs(ws *WatchState) []scanJob {
	var jobs []scanJob
	for _, src := range o.sources {
		if src.Kind != string(model.OriginRemote) {
			continue
		}
		mirrorRoot := src.MirrorRoot
		if mirrorRoot == "" {
			mirrorRoot = filepath.Join(o.layout.RemotesDir, src.SourceID, "mirror")
		}
		prov := model.Provenance{SourceID: src.SourceID, OriginKind: model.OriginRemote, OriginHost: src.HostLabel}

		slugs := src.Connectors
		if len(slugs) == 0 {
			for slug := range homeRootSuffix {
				slugs = append(slugs, slug)
			}
		}
		for _, slug := range slugs {
			suffix, ok := homeRootSuffix[slug]
			registered := false
			for _, c := range o.connectors {
				registered = registered || c.Slug() == slug
			}
			if !ok || !registered {
				continue
			}
			since := int64(0)
			if ws != nil {
				since = ws.Get(src.SourceID + "/" + slug)
			}
			jobs = append(jobs, scanJob{
				slug:  slug,
				root:  filepath.Join(mirrorRoot, suffix),
				prov:  prov,
				since: since,
				rules: src.Rules(),
			})
		}
	}
	return jobs
}

// rewriteWorkspacePath applies the first matching path_rewrite rule (in
// order) for agentSlug, or returns path unchanged if none matches
// (spec.md §4.A: "a path_rewrite ordered list... rewrites remote absolute
// paths to local equivalents at ingest time").
func rewriteWorkspacePath(rules []model.PathRewriteRule, agentSlug, path string) string {
	for _, r := range rules {
		if len(r.AgentsFilter) > 0 && !containsSlug(r.AgentsFilter, agentSlug) {
			continue
		}
		if strings.HasPrefix(path, r.FromPrefix) {
			return r.ToPrefix + strings.TrimPrefix(path, r.FromPrefix)
		}
	}
	return path
}

func containsSlug(slugs []string, slug string) bool {
	for _, s := range slugs {
		if s == slug {
			return true
		}
	}
	return false
}
