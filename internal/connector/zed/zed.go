// Package zed reads Zed's assistant panel conversation logs: one JSON
// document per conversation under ~/.config/zed/conversations/<id>.json,
// each holding a top-level "messages" array.
package zed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rawwerks/cass/internal/connector"
	"github.com/rawwerks/cass/internal/model"
)

const Slug = "zed"

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
	return filepath.Join(home, ".config", "zed", "conversations")
}

type rawDoc struct {
	ID       string       `json:"id"`
	Summary  string       `json:"summary"`
	Workspace string      `json:"workspace_path"`
	Messages []rawMessage `json:"messages"`
}

type rawMessage struct {
	Role      string `json:"role"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

func (c *Connector) Scan(ctx connector.ScanContext) (connector.ScanResult, error) {
	var result connector.ScanResult

	for _, root := range ctx.ScanRoots {
		entries, err := os.ReadDir(root)
		if err != nil {
			result.Warnings = append(result.Warnings, connector.ScanWarning{
				Kind: "source_unreadable", Path: root, Err: err,
			})
			continue
		}

		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			path := filepath.Join(root, e.Name())
			pc, err := c.scanFile(path, ctx.Provenance)
			if err != nil {
				result.Warnings = append(result.Warnings, connector.ScanWarning{
					Kind: "parse_skip", Path: path, Err: err,
				})
				continue
			}
			if pc != nil {
				result.Conversations = append(result.Conversations, *pc)
			}
		}
	}

	return result, nil
}

func (c *Connector) scanFile(path string, prov model.Provenance) (*connector.ParsedConversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read conversation file: %w", err)
	}

	var doc rawDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse conversation json: %w", err)
	}
	if len(doc.Messages) == 0 {
		return nil, nil
	}

	var messages []model.Message
	var firstTS, lastTS int64
	for i, m := range doc.Messages {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		ts := model.NormalizeTimestampString(m.Timestamp)
		if firstTS == 0 {
			firstTS = ts
		}
		if ts > lastTS {
			lastTS = ts
		}
		role := model.NormalizeRole(m.Role)
		messages = append(messages, model.Message{
			Idx: i, Role: role, Content: text, CreatedAt: ts,
			ContentHash: model.ContentHash(role, text, ts),
		})
	}
	if len(messages) == 0 {
		return nil, nil
	}

	conv := model.Conversation{
		ExternalID:   connector.ExternalID(doc.ID, path),
		Title:        truncate(doc.Summary, 80),
		SourcePath:   path,
		StartedAt:    firstTS,
		EndedAt:      lastTS,
		MessageCount: len(messages),
		Metadata:     map[string]string{"workspace": doc.Workspace},
		Provenance:   prov,
	}
	return &connector.ParsedConversation{Conversation: conv, Messages: messages}, nil
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
