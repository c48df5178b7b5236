// Package codex reads OpenAI Codex CLI session logs: JSONL files under
// ~/.codex/sessions/<date>/<session-id>.jsonl, one line per turn plus a
// leading session_meta record. Simpler than Claude Code's format (no
// streaming-chunk coalescing needed — one line is one complete message) but
// shares the same line-tolerant scanning idiom.
package codex

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rawwerks/cass/internal/connector"
	"github.com/rawwerks/cass/internal/model"
)

const Slug = "codex"

const maxLineSize = 1 << 20

type Connector struct {
	Dir string
}

func New() *Connector { return &Connector{} }

func (c *Connector) Slug() string { return Slug }

func (c *Connector) Detect() connector.Detection {
	dir := c.dir()
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return connector.Detection{Present: true, ScanRoots: []string{dir}, Confidence: 1.0}
	}
	return connector.Detection{}
}

func (c *Connector) dir() string {
	if c.Dir != "" {
		return c.Dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".codex", "sessions")
}

type rawLine struct {
	Type      string         `json:"type"`
	ID        string         `json:"id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp any            `json:"timestamp"`
	CWD       string         `json:"cwd"`
	ToolName  string         `json:"tool_name"`
	ToolInput map[string]any `json:"tool_input"`
}

func (c *Connector) Scan(ctx connector.ScanContext) (connector.ScanResult, error) {
	var result connector.ScanResult

	for _, root := range ctx.ScanRoots {
		err := connector.WalkFiles(root, func(path string, isDir bool) {
			if isDir || !strings.HasSuffix(path, ".jsonl") {
				return
			}
			pc, warnings, err := c.scanFile(path, ctx.Provenance)
			result.Warnings = append(result.Warnings, warnings...)
			if err != nil {
				result.Warnings = append(result.Warnings, connector.ScanWarning{
					Kind: "parse_skip", Path: path, Err: err,
				})
				return
			}
			if pc != nil {
				result.Conversations = append(result.Conversations, *pc)
			}
		})
		if err != nil {
			result.Warnings = append(result.Warnings, connector.ScanWarning{
				Kind: "source_unreadable", Path: root, Err: err,
			})
		}
	}

	return result, nil
}

func (c *Connector) scanFile(path string, prov model.Provenance) (*connector.ParsedConversation, []connector.ScanWarning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	var messages []model.Message
	var warnings []connector.ScanWarning
	var sessionID, cwd string
	var firstTS, lastTS int64
	idx := 0
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		var l rawLine
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			warnings = append(warnings, connector.ScanWarning{
				Kind: "parse_skip", Path: fmt.Sprintf("%s:%d", path, lineNo), Err: err,
			})
			continue
		}

		ts := normalizeAnyTimestamp(l.Timestamp)
		if firstTS == 0 {
			firstTS = ts
		}
		if ts > lastTS {
			lastTS = ts
		}

		switch l.Type {
		case "session_meta":
			sessionID = l.ID
			cwd = l.CWD
			continue
		case "tool_call":
			text := connector.FlattenToolUse(l.ToolName, l.ToolInput)
			role := model.RoleTool
			messages = append(messages, model.Message{
				Idx: idx, Role: role, Content: text, CreatedAt: ts,
				ContentHash: model.ContentHash(role, text, ts),
			})
			idx++
			continue
		}

		if l.Content == "" {
			continue
		}
		role := model.NormalizeRole(l.Role)
		messages = append(messages, model.Message{
			Idx: idx, Role: role, Content: l.Content, CreatedAt: ts,
			ContentHash: model.ContentHash(role, l.Content, ts),
		})
		idx++
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, fmt.Errorf("scan session file: %w", err)
	}
	if len(messages) == 0 {
		return nil, warnings, nil
	}

	title := ""
	for _, m := range messages {
		if m.Role == model.RoleUser {
			title = truncate(m.Content, 80)
			break
		}
	}

	conv := model.Conversation{
		ExternalID:   connector.ExternalID(sessionID, path),
		Title:        title,
		SourcePath:   path,
		StartedAt:    firstTS,
		EndedAt:      lastTS,
		MessageCount: len(messages),
		Metadata:     map[string]string{"workspace": cwd},
		Provenance:   prov,
	}
	return &connector.ParsedConversation{Conversation: conv, Messages: messages}, warnings, nil
}

func normalizeAnyTimestamp(v any) int64 {
	switch t := v.(type) {
	case float64:
		return model.NormalizeTimestampSeconds(t)
	case string:
		return model.NormalizeTimestampString(t)
	default:
		return 0
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if i := strings.LastIndex(s[:maxLen], " "); i > 0 {
		return s[:i] + "..."
	}
	return s[:maxLen] + "..."
}
