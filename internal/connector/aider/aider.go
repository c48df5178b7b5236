// Package aider reads Aider's .aider.chat.history.md transcript: a single
// markdown file per workspace, appended to every session, where each user
// prompt is a "#### " heading and the following lines up to the next
// heading or a "---" rule are the assistant's turn.
package aider

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rawwerks/cass/internal/connector"
	"github.com/rawwerks/cass/internal/model"
)

const Slug = "aider"

const historyFileName = ".aider.chat.history.md"

type Connector struct {
	// Roots overrides the directories searched for a history file (tests).
	Roots []string
}

func New() *Connector { return &Connector{} }

func (c *Connector) Slug() string { return Slug }

func (c *Connector) Detect() connector.Detection {
	var roots []string
	for _, root := range c.searchRoots() {
		if _, err := os.Stat(filepath.Join(root, historyFileName)); err == nil {
			roots = append(roots, root)
		}
	}
	if len(roots) == 0 {
		return connector.Detection{}
	}
	return connector.Detection{Present: true, ScanRoots: roots, Confidence: 0.8}
}

func (c *Connector) searchRoots() []string {
	if c.Roots != nil {
		return c.Roots
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	return []string{cwd}
}

func (c *Connector) Scan(ctx connector.ScanContext) (connector.ScanResult, error) {
	var result connector.ScanResult

	for _, root := range ctx.ScanRoots {
		path := filepath.Join(root, historyFileName)
		pc, warnings, err := c.scanFile(path, root, ctx.Provenance)
		result.Warnings = append(result.Warnings, warnings...)
		if err != nil {
			result.Warnings = append(result.Warnings, connector.ScanWarning{
				Kind: "source_unreadable", Path: path, Err: err,
			})
			continue
		}
		result.Conversations = append(result.Conversations, pc...)
	}

	return result, nil
}

// scanFile splits the history file into sessions on "# aider chat started at"
// headers, then each session into turns on "#### " headers.
func (c *Connector) scanFile(path, workspace string, prov model.Provenance) ([]connector.ParsedConversation, []connector.ScanWarning, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)

	var sessions [][]string
	var current []string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "# aider chat started at") {
			if len(current) > 0 {
				sessions = append(sessions, current)
			}
			current = []string{line}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		sessions = append(sessions, current)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan history file: %w", err)
	}

	var convs []connector.ParsedConversation
	for i, session := range sessions {
		messages := parseTurns(session)
		if len(messages) == 0 {
			continue
		}
		title := ""
		for _, m := range messages {
			if m.Role == model.RoleUser {
				title = truncate(m.Content, 80)
				break
			}
		}
		conv := model.Conversation{
			ExternalID:   connector.ExternalID("", fmt.Sprintf("%s#%d", path, i)),
			Title:        title,
			SourcePath:   path,
			MessageCount: len(messages),
			Metadata:     map[string]string{"workspace": workspace},
			Provenance:   prov,
		}
		convs = append(convs, connector.ParsedConversation{Conversation: conv, Messages: messages})
	}
	return convs, nil, nil
}

func parseTurns(lines []string) []model.Message {
	var messages []model.Message
	var currentRole model.Role
	var buf strings.Builder
	idx := 0
	hasTurn := false

	flush := func() {
		if !hasTurn {
			return
		}
		text := strings.TrimSpace(buf.String())
		if text != "" {
			messages = append(messages, model.Message{
				Idx: idx, Role: currentRole, Content: text,
				ContentHash: model.ContentHash(currentRole, text, 0),
			})
			idx++
		}
		buf.Reset()
	}

	for _, line := range lines {
		switch {
		case strings.HasPrefix(line, "# aider chat started at"):
			continue
		case strings.HasPrefix(line, "#### "):
			flush()
			currentRole = model.RoleUser
			hasTurn = true
			buf.WriteString(strings.TrimPrefix(line, "#### "))
		case strings.TrimSpace(line) == "---":
			flush()
			currentRole = model.RoleAssistant
			hasTurn = false
		default:
			if strings.TrimSpace(line) != "" && (!hasTurn || currentRole == model.RoleUser) {
				flush()
				currentRole = model.RoleAssistant
				hasTurn = true
			}
			if hasTurn {
				buf.WriteString("\n")
				buf.WriteString(line)
			}
		}
	}
	flush()
	return messages
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
