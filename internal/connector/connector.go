// Package connector defines the polymorphic ingestion contract every
// coding-agent log format implements, plus the shared helpers (tool-use
// flattening, stable external-id derivation) every concrete adapter uses.
// The detect()/scan() shape and the lazy-sequence-via-callback idiom follow
// the teacher's reader pattern observed across the pack
// (other_examples/.../reader-claude-claude.go.go): a format-specific Reader
// that opens files, tolerates malformed lines, and emits a uniform document.
package connector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rawwerks/cass/internal/model"
)

// Detection reports whether a connector's source is present on this machine
// and where to scan it.
type Detection struct {
	Present    bool
	ScanRoots  []string
	Confidence float64 // 0..1; a fixed value per connector
}

// ScanContext carries the inputs a connector needs to perform one scan pass.
type ScanContext struct {
	Context        context.Context
	ScanRoots      []string
	SinceTimestamp int64 // ms epoch; 0 means "scan everything" (full mode)
	Provenance     model.Provenance
}

// ParsedConversation is one conversation plus its ordered messages, as
// produced by a connector before the store assigns row ids.
type ParsedConversation struct {
	Conversation model.Conversation
	Messages     []model.Message
}

// ScanWarning is a non-fatal issue encountered during a scan: a malformed
// record (parse_skip) or an unreadable root (source_unreadable). Scans never
// abort because of one; they accumulate warnings and keep going.
type ScanWarning struct {
	Kind string // "source_unreadable" | "parse_skip"
	Path string
	Err  error
}

func (w ScanWarning) Error() string {
	return fmt.Sprintf("%s: %s: %v", w.Kind, w.Path, w.Err)
}

// ScanResult is the outcome of one connector Scan call.
type ScanResult struct {
	Conversations []ParsedConversation
	Warnings      []ScanWarning
}

// Connector knows one agent's on-disk session-log shape.
type Connector interface {
	// Slug is the stable agent identifier stored in the agents table.
	Slug() string
	// Detect reports whether this connector's source exists on this machine.
	Detect() Detection
	// Scan reads every conversation under ctx.ScanRoots modified at or after
	// ctx.SinceTimestamp, normalizing each into the shared model.
	Scan(ctx ScanContext) (ScanResult, error)
}

// ExternalID derives a stable external_id from a native id when the format
// provides one, else a deterministic hash of the source file path — the
// fallback spec.md §4.B requires so re-ingesting the same file never creates
// a duplicate conversation.
func ExternalID(nativeID, sourcePath string) string {
	if nativeID != "" {
		return nativeID
	}
	sum := sha256.Sum256([]byte(sourcePath))
	return "path:" + hex.EncodeToString(sum[:])[:32]
}
