// Package cursor reads Cursor/Windsurf chat history out of their shared
// workbench storage format: a per-workspace SQLite database
// (state.vscdb) with a single ItemTable(key TEXT, value BLOB) holding JSON
// blobs, one of which carries the chat "bubbles" for that workspace. Grounded
// on the teacher's sql.Open("sqlite3", ...)-then-query idiom
// (internal/store/learning.go, internal/store/embedded_store.go) adapted
// from a knowledge-atom store to a read-only external log reader.
package cursor

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rawwerks/cass/internal/connector"
	"github.com/rawwerks/cass/internal/model"
)

const (
	SlugCursor   = "cursor"
	SlugWindsurf = "windsurf"

	chatDataKey = "workbench.panel.aichat.view.aichat.chatdata"
)

// Connector reads the Cursor/Windsurf workspace storage layout. Variant
// selects the agent slug and default root; the on-disk format is identical.
type Connector struct {
	Variant string // SlugCursor or SlugWindsurf
	Dir     string // overrides the default workspaceStorage root
}

func NewCursor() *Connector   { return &Connector{Variant: SlugCursor} }
func NewWindsurf() *Connector { return &Connector{Variant: SlugWindsurf} }

func (c *Connector) Slug() string { return c.Variant }

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
	app := "Cursor"
	if c.Variant == SlugWindsurf {
		app = "Windsurf"
	}
	return filepath.Join(home, ".config", app, "User", "workspaceStorage")
}

func (c *Connector) Scan(ctx connector.ScanContext) (connector.ScanResult, error) {
	var result connector.ScanResult

	for _, root := range ctx.ScanRoots {
		workspaceDirs, err := os.ReadDir(root)
		if err != nil {
			result.Warnings = append(result.Warnings, connector.ScanWarning{
				Kind: "source_unreadable", Path: root, Err: err,
			})
			continue
		}

		for _, wd := range workspaceDirs {
			if !wd.IsDir() {
				continue
			}
			dbPath := filepath.Join(root, wd.Name(), "state.vscdb")
			if _, err := os.Stat(dbPath); err != nil {
				continue
			}

			pc, warnings, err := c.scanDB(dbPath, ctx.Provenance)
			result.Warnings = append(result.Warnings, warnings...)
			if err != nil {
				result.Warnings = append(result.Warnings, connector.ScanWarning{
					Kind: "parse_skip", Path: dbPath, Err: err,
				})
				continue
			}
			result.Conversations = append(result.Conversations, pc...)
		}
	}

	return result, nil
}

type chatBubble struct {
	Type int    `json:"type"` // 1 = user, 2 = assistant (Cursor's internal enum)
	Text string `json:"text"`
}

type chatTab struct {
	TabID   string       `json:"tabId"`
	Bubbles []chatBubble `json:"bubbles"`
}

type chatData struct {
	Tabs []chatTab `json:"tabs"`
}

func (c *Connector) scanDB(dbPath string, prov model.Provenance) ([]connector.ParsedConversation, []connector.ScanWarning, error) {
	db, err := sql.Open("sqlite3", "file:"+dbPath+"?mode=ro&immutable=1")
	if err != nil {
		return nil, nil, fmt.Errorf("open state.vscdb: %w", err)
	}
	defer db.Close()

	var blob []byte
	row := db.QueryRow(`SELECT value FROM ItemTable WHERE key = ?`, chatDataKey)
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("read chat data: %w", err)
	}

	var data chatData
	if err := json.Unmarshal(blob, &data); err != nil {
		return nil, nil, fmt.Errorf("parse chat data: %w", err)
	}

	workspace := filepath.Base(filepath.Dir(dbPath))
	var warnings []connector.ScanWarning
	var convs []connector.ParsedConversation

	for _, tab := range data.Tabs {
		var messages []model.Message
		idx := 0
		for _, b := range tab.Bubbles {
			text := strings.TrimSpace(b.Text)
			if text == "" {
				continue
			}
			role := model.RoleAssistant
			if b.Type == 1 {
				role = model.RoleUser
			}
			messages = append(messages, model.Message{
				Idx: idx, Role: role, Content: text,
				ContentHash: model.ContentHash(role, text, 0),
			})
			idx++
		}
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
			ExternalID:   connector.ExternalID(tab.TabID, dbPath+"#"+tab.TabID),
			Title:        title,
			SourcePath:   dbPath,
			MessageCount: len(messages),
			Metadata:     map[string]string{"workspace": workspace},
			Provenance:   prov,
		}
		convs = append(convs, connector.ParsedConversation{Conversation: conv, Messages: messages})
	}

	return convs, warnings, nil
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
