// Package model defines the normalized conversational entities every
// connector parses into and every downstream store, index, and query
// component consumes. Nothing in this package talks to disk.
package model

// Role is the normalized speaker role of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
	RoleOther     Role = "other"
)

// NormalizeRole maps an agent-specific role string onto the fixed enum,
// defaulting to RoleOther for anything unrecognized.
func NormalizeRole(raw string) Role {
	switch raw {
	case "user", "human":
		return RoleUser
	case "assistant", "model", "bot":
		return RoleAssistant
	case "system":
		return RoleSystem
	case "tool", "tool_result", "function":
		return RoleTool
	default:
		return RoleOther
	}
}

// OriginKind distinguishes a local filesystem source from a mirrored remote one.
type OriginKind string

const (
	OriginLocal  OriginKind = "local"
	OriginRemote OriginKind = "remote"
)

// Provenance identifies where a Conversation or indexed document originated.
// It is attached to every Conversation and propagated into every indexed
// document so that search-time dedup never merges hits across sources.
type Provenance struct {
	SourceID   string
	OriginKind OriginKind
	OriginHost string
}

// Agent is a coding-assistant tool whose logs this system ingests. Unique by
// Slug. Created on first sighting, never deleted.
type Agent struct {
	ID   int64
	Slug string
}

// Workspace is an agent-reported project root, unique by canonical path.
type Workspace struct {
	ID                 int64
	Path               string
	WorkspaceOriginal  string // pre-path-rewrite value, preserved for provenance
}

// Source is a logical origin: "local" by default, or a named remote mirror.
type Source struct {
	ID        int64
	SourceID  string
	Kind      OriginKind
	HostLabel string
}

// PathRewriteRule rewrites a remote absolute path prefix to its local
// equivalent at ingest time. AgentsFilter, when non-empty, restricts the
// rule to the listed agent slugs.
type PathRewriteRule struct {
	FromPrefix   string
	ToPrefix     string
	AgentsFilter []string
}

// Conversation is one agent session. Identity is UNIQUE(source_id, agent,
// external_id); rows are append-augmented, never mutated in place beyond
// EndedAt, MessageCount, and Title.
type Conversation struct {
	ID           int64
	AgentRef     int64
	WorkspaceRef int64 // 0 means no workspace
	SourceRef    int64
	ExternalID   string
	Title        string
	SourcePath   string
	StartedAt    int64 // ms epoch
	EndedAt      int64 // ms epoch, 0 if unset
	MessageCount int
	Metadata     map[string]string
	Provenance   Provenance
}

// Message is an event within a conversation. (ConversationRef, Idx) is
// unique and monotonic; Idx is 0-based and only orders messages within
// their conversation, it is not a raw source-file line number. ContentHash
// is deterministic so identical messages seen twice in a conversation
// dedupe to one row.
type Message struct {
	ID              int64
	ConversationRef int64
	Idx             int
	Role            Role
	Content         string
	CreatedAt       int64 // ms epoch, 0 if unset
	UpdatedAt       int64 // ms epoch, 0 if unset
	Model           string
	ContentHash     string
}

// Snippet is an optional extracted code-like region of a message.
type Snippet struct {
	ID         int64
	MessageRef int64
	Language   string
	Content    string
	StartOffset int
	EndOffset   int
}
