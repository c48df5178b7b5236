package orchestrator

import (
	"github.com/rawwerks/cass/internal/connector"
	"github.com/rawwerks/cass/internal/connector/aider"
	"github.com/rawwerks/cass/internal/connector/claudecode"
	"github.com/rawwerks/cass/internal/connector/codex"
	"github.com/rawwerks/cass/internal/connector/cursor"
	"github.com/rawwerks/cass/internal/connector/genericjson"
	"github.com/rawwerks/cass/internal/connector/genericjsonl"
	"github.com/rawwerks/cass/internal/connector/markdown"
	"github.com/rawwerks/cass/internal/connector/zed"
)

// DefaultConnectors returns one instance of every built-in connector
// (spec.md §4.B's "a mix of... at least 11 supported agents"). markdownRoots
// declares extra directories the generic markdown fallback should search;
// it has no default location of its own since it's an opt-in catch-all.
func DefaultConnectors(markdownRoots []string) []connector.Connector {
	return []connector.Connector{
		claudecode.New(),
		codex.New(),
		cursor.NewCursor(),
		cursor.NewWindsurf(),
		aider.New(),
		zed.New(),
		genericjsonl.Continue(),
		genericjsonl.OpenCode(),
		genericjsonl.Amp(),
		genericjson.CopilotChat(),
		&markdown.Connector{Roots: markdownRoots},
	}
}
