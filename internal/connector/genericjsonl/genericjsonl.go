// Package genericjsonl implements one parameterized reader for the several
// coding agents whose session logs are "one JSON object per line, one line
// per message" with only field-name differences between them: Continue,
// OpenCode, and Amp. Rather than duplicate the scanning loop three times,
// FieldMap captures the per-agent key names and RootDir, and Connector does
// the shared line-scanning, role/timestamp normalization, and tool-use
// flattening once.
package genericjsonl

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

const maxLineSize = 1 << 20

// FieldMap names the JSON keys this agent's JSONL format uses.
type FieldMap struct {
	RoleKey      string
	ContentKey   string
	TimestampKey string
	SessionIDKey string // top-level key carrying the session/conversation id, if any line has it
	ToolNameKey  string
	ToolInputKey string
}

// Connector reads one agent's line-delimited JSON session logs.
type Connector struct {
	AgentSlug string
	Fields    FieldMap
	Dir       string // overrides the default root (tests)
	defaultDir func() string
}

// New constructs a Connector for a given agent slug, field mapping, and
// default root resolver.
func New(slug string, fields FieldMap, defaultDir func() string) *Connector {
	return &Connector{AgentSlug: slug, Fields: fields, defaultDir: defaultDir}
}

func (c *Connector) Slug() string { return c.AgentSlug }

func (c *Connector) Detect() connector.Detection {
	dir := c.dir()
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return connector.Detection{Present: true, ScanRoots: []string{dir}, Confidence: 0.9}
	}
	return connector.Detection{}
}

func (c *Connector) dir() string {
	if c.Dir != "" {
		return c.Dir
	}
	if c.defaultDir != nil {
		return c.defaultDir()
	}
	return ""
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
	var sessionID string
	var firstTS, lastTS int64
	idx := 0
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		var raw map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			warnings = append(warnings, connector.ScanWarning{
				Kind: "parse_skip", Path: fmt.Sprintf("%s:%d", path, lineNo), Err: err,
			})
			continue
		}

		if c.Fields.SessionIDKey != "" {
			if v, ok := raw[c.Fields.SessionIDKey].(string); ok && v != "" {
				sessionID = v
			}
		}

		ts := extractTimestamp(raw, c.Fields.TimestampKey)
		if firstTS == 0 {
			firstTS = ts
		}
		if ts > lastTS {
			lastTS = ts
		}

		if c.Fields.ToolNameKey != "" {
			if name, ok := raw[c.Fields.ToolNameKey].(string); ok && name != "" {
				input, _ := raw[c.Fields.ToolInputKey].(map[string]any)
				text := connector.FlattenToolUse(name, input)
				messages = append(messages, model.Message{
					Idx: idx, Role: model.RoleTool, Content: text, CreatedAt: ts,
					ContentHash: model.ContentHash(model.RoleTool, text, ts),
				})
				idx++
				continue
			}
		}

		content, _ := raw[c.Fields.ContentKey].(string)
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		roleRaw, _ := raw[c.Fields.RoleKey].(string)
		role := model.NormalizeRole(roleRaw)
		messages = append(messages, model.Message{
			Idx: idx, Role: role, Content: content, CreatedAt: ts,
			ContentHash: model.ContentHash(role, content, ts),
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
		Metadata:     map[string]string{},
		Provenance:   prov,
	}
	return &connector.ParsedConversation{Conversation: conv, Messages: messages}, warnings, nil
}

func extractTimestamp(raw map[string]any, key string) int64 {
	if key == "" {
		return 0
	}
	switch v := raw[key].(type) {
	case float64:
		return model.NormalizeTimestampSeconds(v)
	case string:
		return model.NormalizeTimestampString(v)
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

// Continue constructs the Continue.dev connector: JSONL under
// ~/.continue/sessions/.
func Continue() *Connector {
	return New("continue", FieldMap{
		RoleKey: "role", ContentKey: "content", TimestampKey: "ts",
		SessionIDKey: "sessionId",
	}, func() string {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".continue", "sessions")
	})
}

// OpenCode constructs the OpenCode connector: JSONL under
// ~/.local/share/opencode/sessions/.
func OpenCode() *Connector {
	return New("opencode", FieldMap{
		RoleKey: "role", ContentKey: "text", TimestampKey: "timestamp",
		SessionIDKey: "session_id", ToolNameKey: "tool", ToolInputKey: "tool_args",
	}, func() string {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".local", "share", "opencode", "sessions")
	})
}

// Amp constructs the Amp connector: JSONL under ~/.amp/logs/.
func Amp() *Connector {
	return New("amp", FieldMap{
		RoleKey: "speaker", ContentKey: "message", TimestampKey: "time",
		SessionIDKey: "threadId",
	}, func() string {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".amp", "logs")
	})
}
