// Package claudecode reads Claude Code session logs: JSONL files under
// ~/.claude/projects/<project>/<session-uuid>.jsonl, one line per event.
// Grounded on other_examples' Claude Code JSONL reader: the same
// line-filtering (isSidechain, type user/assistant only), streaming
// assistant-chunk coalescing by message id, and content-block union are
// reproduced here against cass's own model instead of a bespoke Transcript type.
package claudecode

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

const Slug = "claude-code"

// maxLineSize mirrors the teacher reader's 1 MB buffer: tool results can
// exceed bufio.Scanner's default 64 KB.
const maxLineSize = 1 << 20

type Connector struct {
	// Dir overrides the default ~/.claude/projects directory (used by tests).
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
	return filepath.Join(home, ".claude", "projects")
}

func (c *Connector) Scan(ctx connector.ScanContext) (connector.ScanResult, error) {
	var result connector.ScanResult

	for _, root := range ctx.ScanRoots {
		projectDirs, err := os.ReadDir(root)
		if err != nil {
			result.Warnings = append(result.Warnings, connector.ScanWarning{
				Kind: "source_unreadable", Path: root, Err: err,
			})
			continue
		}

		for _, pd := range projectDirs {
			if !pd.IsDir() {
				continue
			}
			projectDir := filepath.Join(root, pd.Name())
			files, err := os.ReadDir(projectDir)
			if err != nil {
				result.Warnings = append(result.Warnings, connector.ScanWarning{
					Kind: "source_unreadable", Path: projectDir, Err: err,
				})
				continue
			}

			for _, f := range files {
				if f.IsDir() || !strings.HasSuffix(f.Name(), ".jsonl") {
					continue
				}
				path := filepath.Join(projectDir, f.Name())
				info, err := f.Info()
				if err == nil && ctx.SinceTimestamp > 0 && info.ModTime().UnixMilli() < ctx.SinceTimestamp {
					continue
				}

				pc, warnings, err := c.scanFile(path, ctx.Provenance)
				result.Warnings = append(result.Warnings, warnings...)
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
	}

	return result, nil
}

type rawEntry struct {
	Type        string     `json:"type"`
	UUID        string     `json:"uuid"`
	SessionID   string     `json:"sessionId"`
	Timestamp   string     `json:"timestamp"`
	CWD         string     `json:"cwd"`
	IsSidechain bool       `json:"isSidechain"`
	Message     rawMessage `json:"message"`
}

type rawMessage struct {
	ID      string            `json:"id"`
	Role    string            `json:"role"`
	Model   string            `json:"model"`
	Content []json.RawMessage `json:"content"`
}

type rawContentBlock struct {
	Type      string `json:"type"`
	Text      string `json:"text"`
	Thinking  string `json:"thinking"`
	ID        string `json:"id"`
	Name      string `json:"name"`
	Input     map[string]any `json:"input"`
	ToolUseID string `json:"tool_use_id"`
	Content   any    `json:"content"`
	IsError   bool   `json:"is_error"`
}

func (c *Connector) scanFile(path string, prov model.Provenance) (*connector.ParsedConversation, []connector.ScanWarning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, maxLineSize), maxLineSize)

	var entries []rawEntry
	var warnings []connector.ScanWarning
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		var entry rawEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			warnings = append(warnings, connector.ScanWarning{
				Kind: "parse_skip", Path: fmt.Sprintf("%s:%d", path, lineNo), Err: err,
			})
			continue
		}
		if entry.IsSidechain {
			continue
		}
		if entry.Type != "user" && entry.Type != "assistant" {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, warnings, fmt.Errorf("scan session file: %w", err)
	}
	if len(entries) == 0 {
		return nil, warnings, nil
	}

	messages := groupAndFlatten(entries)
	first, last := entries[0], entries[len(entries)-1]

	workspace := first.CWD
	conv := model.Conversation{
		ExternalID:   connector.ExternalID(first.SessionID, path),
		Title:        deriveTitle(messages),
		SourcePath:   path,
		StartedAt:    model.NormalizeTimestampString(first.Timestamp),
		EndedAt:      model.NormalizeTimestampString(last.Timestamp),
		MessageCount: len(messages),
		Metadata:     map[string]string{"workspace": workspace},
		Provenance:   prov,
	}

	return &connector.ParsedConversation{Conversation: conv, Messages: messages}, warnings, nil
}

// groupAndFlatten coalesces streaming assistant chunks sharing a message id
// into one model.Message, flattening tool_use/tool_result blocks into
// searchable prose and concatenating text/thinking blocks.
func groupAndFlatten(entries []rawEntry) []model.Message {
	var messages []model.Message
	var currentText strings.Builder
	var currentMsgID string
	var currentRole model.Role
	var currentTS string
	idx := 0 // 0-based position within the conversation, not a raw file line

	emit := func() {
		if currentMsgID == "" {
			return
		}
		text := strings.TrimSpace(currentText.String())
		createdAt := model.NormalizeTimestampString(currentTS)
		messages = append(messages, model.Message{
			Idx:         idx,
			Role:        currentRole,
			Content:     text,
			CreatedAt:   createdAt,
			ContentHash: model.ContentHash(currentRole, text, createdAt),
		})
		idx++
		currentText.Reset()
		currentMsgID = ""
	}

	for _, entry := range entries {
		if entry.Type == "assistant" {
			msgID := entry.Message.ID
			if msgID != currentMsgID {
				emit()
				currentMsgID = msgID
				currentRole = model.RoleAssistant
				currentTS = entry.Timestamp
			}
			appendBlocks(&currentText, entry.Message.Content)
		} else {
			if !isToolResultOnly(entry) {
				emit()
			}
			var userText strings.Builder
			appendBlocks(&userText, entry.Message.Content)
			text := strings.TrimSpace(userText.String())
			createdAt := model.NormalizeTimestampString(entry.Timestamp)
			messages = append(messages, model.Message{
				Idx:         idx,
				Role:        model.RoleUser,
				Content:     text,
				CreatedAt:   createdAt,
				ContentHash: model.ContentHash(model.RoleUser, text, createdAt),
			})
			idx++
		}
	}
	emit()
	return messages
}

func appendBlocks(b *strings.Builder, raw []json.RawMessage) {
	for _, r := range raw {
		var block rawContentBlock
		if err := json.Unmarshal(r, &block); err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		switch block.Type {
		case "text":
			b.WriteString(block.Text)
		case "thinking":
			b.WriteString(block.Thinking)
		case "tool_use":
			b.WriteString(connector.FlattenToolUse(block.Name, block.Input))
		case "tool_result":
			content := connector.ExtractTextContent(block.Content)
			b.WriteString(connector.FlattenToolResult(block.ToolUseID, block.IsError, content))
		}
	}
}

func isToolResultOnly(entry rawEntry) bool {
	if len(entry.Message.Content) == 0 {
		return false
	}
	for _, raw := range entry.Message.Content {
		var b struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &b); err != nil {
			continue
		}
		if b.Type != "tool_result" {
			return false
		}
	}
	return true
}

func deriveTitle(messages []model.Message) string {
	for _, m := range messages {
		if m.Role != model.RoleUser {
			continue
		}
		text := strings.TrimSpace(m.Content)
		if text == "" || strings.Contains(text, "<ide_opened_file>") {
			continue
		}
		return truncate(text, 80)
	}
	return ""
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
