// Package genericjson implements a reader for agents that persist one
// complete JSON document per conversation (as opposed to JSONL): currently
// GitHub Copilot Chat, which writes VS Code workspaceStorage JSON blobs
// under a known key. The scanning shape mirrors zed's single-document
// reader but is generalized over a JSON-path-like field extractor so a new
// single-document agent only needs a FieldMap, not a new scanning loop.
package genericjson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rawwerks/cass/internal/connector"
	"github.com/rawwerks/cass/internal/model"
)

// FieldMap names the JSON keys this agent's single-document format uses.
// MessagesKey points at the array of turns; RoleKey/ContentKey/TimestampKey
// name the per-turn fields within it.
type FieldMap struct {
	IDKey        string
	TitleKey     string
	MessagesKey  string
	RoleKey      string
	ContentKey   string
	TimestampKey string
}

type Connector struct {
	AgentSlug  string
	Fields     FieldMap
	Dir        string
	defaultDir func() string
}

func New(slug string, fields FieldMap, defaultDir func() string) *Connector {
	return &Connector{AgentSlug: slug, Fields: fields, defaultDir: defaultDir}
}

func (c *Connector) Slug() string { return c.AgentSlug }

func (c *Connector) Detect() connector.Detection {
	dir := c.dir()
	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		return connector.Detection{Present: true, ScanRoots: []string{dir}, Confidence: 0.8}
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
			if isDir || !strings.HasSuffix(path, ".json") {
				return
			}
			pc, err := c.scanFile(path, ctx.Provenance)
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

func (c *Connector) scanFile(path string, prov model.Provenance) (*connector.ParsedConversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	rawMessages, _ := doc[c.Fields.MessagesKey].([]any)
	if len(rawMessages) == 0 {
		return nil, nil
	}

	var messages []model.Message
	var firstTS, lastTS int64
	idx := 0
	for _, rm := range rawMessages {
		m, ok := rm.(map[string]any)
		if !ok {
			continue
		}
		content, _ := m[c.Fields.ContentKey].(string)
		content = strings.TrimSpace(content)
		if content == "" {
			continue
		}
		roleRaw, _ := m[c.Fields.RoleKey].(string)
		role := model.NormalizeRole(roleRaw)
		ts := extractTimestamp(m, c.Fields.TimestampKey)
		if firstTS == 0 {
			firstTS = ts
		}
		if ts > lastTS {
			lastTS = ts
		}
		messages = append(messages, model.Message{
			Idx: idx, Role: role, Content: content, CreatedAt: ts,
			ContentHash: model.ContentHash(role, content, ts),
		})
		idx++
	}
	if len(messages) == 0 {
		return nil, nil
	}

	id, _ := doc[c.Fields.IDKey].(string)
	title, _ := doc[c.Fields.TitleKey].(string)

	conv := model.Conversation{
		ExternalID:   connector.ExternalID(id, path),
		Title:        truncate(title, 80),
		SourcePath:   path,
		StartedAt:    firstTS,
		EndedAt:      lastTS,
		MessageCount: len(messages),
		Metadata:     map[string]string{},
		Provenance:   prov,
	}
	return &connector.ParsedConversation{Conversation: conv, Messages: messages}, nil
}

func extractTimestamp(m map[string]any, key string) int64 {
	if key == "" {
		return 0
	}
	switch v := m[key].(type) {
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

// CopilotChat constructs the GitHub Copilot Chat connector: one JSON
// document per session under the VS Code workspaceStorage tree.
func CopilotChat() *Connector {
	return New("copilot_chat", FieldMap{
		IDKey: "requestId", TitleKey: "title", MessagesKey: "turns",
		RoleKey: "role", ContentKey: "message", TimestampKey: "createdAt",
	}, func() string {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "Code", "User", "workspaceStorage")
	})
}
