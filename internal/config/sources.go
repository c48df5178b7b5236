package config

import (
	"os"

	"github.com/BurntSushi/toml"

	"github.com/rawwerks/cass/internal/model"
)

// PathRewriteConfig is one [[source.path_rewrite]] table in sources.toml.
type PathRewriteConfig struct {
	FromPrefix   string   `toml:"from_prefix"`
	ToPrefix     string   `toml:"to_prefix"`
	AgentsFilter []string `toml:"agents_filter"`
}

// SourceConfig is one [[source]] table in sources.toml (spec.md §6): a
// registered origin, local or a mirrored remote tree, plus the path-rewrite
// rules applied to that source's conversations at ingest time.
type SourceConfig struct {
	SourceID    string              `toml:"source_id"`
	Kind        string              `toml:"kind"` // "local" or "remote"
	HostLabel   string              `toml:"host_label"`
	MirrorRoot  string              `toml:"mirror_root"`
	Connectors  []string            `toml:"connectors"` // slugs to scan under MirrorRoot; empty means all home-rooted connectors
	PathRewrite []PathRewriteConfig `toml:"path_rewrite"`
}

type sourcesFile struct {
	Source []SourceConfig `toml:"source"`
}

// LoadSources parses <data-dir>/sources.toml. A missing file is not an
// error — it means no additional sources beyond the implicit "local" one
// are registered (spec.md §6: "outside the core's scope to author; the
// core only reads it").
func LoadSources(path string) ([]SourceConfig, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var f sourcesFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, err
	}
	return f.Source, nil
}

// Rules converts a SourceConfig's TOML rewrite tables into the model's
// PathRewriteRule slice consumed by the orchestrator at ingest time.
func (s SourceConfig) Rules() []model.PathRewriteRule {
	if len(s.PathRewrite) == 0 {
		return nil
	}
	out := make([]model.PathRewriteRule, 0, len(s.PathRewrite))
	for _, r := range s.PathRewrite {
		out = append(out, model.PathRewriteRule{
			FromPrefix:   r.FromPrefix,
			ToPrefix:     r.ToPrefix,
			AgentsFilter: r.AgentsFilter,
		})
	}
	return out
}
