// Package markdown is the fallback connector for agents that export plain
// markdown transcripts with no agent-specific structure: a user turn is any
// line starting with "> " (blockquote) or "**User:**"/"**You:**", everything
// else up to the next such marker is the assistant's turn. Used for
// one-off/unknown markdown exports that don't match any of the ≥11
// purpose-built adapters, so an arbitrary *.md transcript under a declared
// root is still searchable rather than silently skipped.
package markdown

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rawwerks/cass/internal/connector"
	"github.com/rawwerks/cass/internal/model"
)

const Slug = "markdown_generic"

var userMarkers = []string{"> ", "**User:**", "**You:**", "# User", "## User"}

type Connector struct {
	Roots []string
}

func New() *Connector { return &Connector{} }

func (c *Connector) Slug() string { return Slug }

func (c *Connector) Detect() connector.Detection {
	var roots []string
	for _, root := range c.Roots {
		if info, err := os.Stat(root); err == nil && info.IsDir() {
			roots = append(roots, root)
		}
	}
	if len(roots) == 0 {
		return connector.Detection{}
	}
	return connector.Detection{Present: true, ScanRoots: roots, Confidence: 0.3}
}

func (c *Connector) Scan(ctx connector.ScanContext) (connector.ScanResult, error) {
	var result connector.ScanResult

	for _, root := range ctx.ScanRoots {
		err := connector.WalkFiles(root, func(path string, isDir bool) {
			if isDir || !strings.HasSuffix(path, ".md") {
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
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open markdown file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 1<<20), 1<<20)

	var messages []model.Message
	var buf strings.Builder
	currentRole := model.RoleOther
	idx := 0

	flush := func() {
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

	for scanner.Scan() {
		line := scanner.Text()
		if isUserMarker(line) {
			flush()
			currentRole = model.RoleUser
			buf.WriteString(stripMarker(line))
			continue
		}
		if currentRole != model.RoleAssistant && strings.TrimSpace(line) != "" {
			flush()
			currentRole = model.RoleAssistant
		}
		buf.WriteString("\n")
		buf.WriteString(line)
	}
	flush()
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan markdown file: %w", err)
	}
	if len(messages) == 0 {
		return nil, nil
	}

	title := filepath.Base(path)
	for _, m := range messages {
		if m.Role == model.RoleUser {
			title = truncate(m.Content, 80)
			break
		}
	}

	conv := model.Conversation{
		ExternalID:   connector.ExternalID("", path),
		Title:        title,
		SourcePath:   path,
		MessageCount: len(messages),
		Metadata:     map[string]string{},
		Provenance:   prov,
	}
	return &connector.ParsedConversation{Conversation: conv, Messages: messages}, nil
}

func isUserMarker(line string) bool {
	trimmed := strings.TrimSpace(line)
	for _, m := range userMarkers {
		if strings.HasPrefix(trimmed, m) {
			return true
		}
	}
	return false
}

func stripMarker(line string) string {
	trimmed := strings.TrimSpace(line)
	for _, m := range userMarkers {
		if strings.HasPrefix(trimmed, m) {
			return strings.TrimSpace(strings.TrimPrefix(trimmed, m))
		}
	}
	return trimmed
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
