package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rawwerks/cass/internal/model"
)

// EnsureAgent returns the row id for slug, inserting it if new.
func (s *Store) EnsureAgent(ctx context.Context, slug string) (int64, error) {
	return ensureByUniqueKey(ctx, s.db, "agents", "slug", slug, nil)
}

// EnsureWorkspace returns the row id for path, inserting it if new.
// original is stored alongside for display (pre-rewrite) purposes.
func (s *Store) EnsureWorkspace(ctx context.Context, path, original string) (int64, error) {
	return ensureByUniqueKey(ctx, s.db, "workspaces", "path", path, map[string]any{
		"workspace_original": original,
	})
}

// EnsureSource returns the row id for sourceID, inserting it (with kind and
// hostLabel) if new.
func (s *Store) EnsureSource(ctx context.Context, sourceID, kind, hostLabel string) (int64, error) {
	return ensureByUniqueKey(ctx, s.db, "sources", "source_id", sourceID, map[string]any{
		"kind":       kind,
		"host_label": hostLabel,
	})
}

func ensureByUniqueKey(ctx context.Context, db *sql.DB, table, keyCol, keyVal string, extra map[string]any) (int64, error) {
	var id int64
	row := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT id FROM %s WHERE %s = ?`, table, keyCol), keyVal)
	if err := row.Scan(&id); err == nil {
		return id, nil
	} else if err != sql.ErrNoRows {
		return 0, fmt.Errorf("lookup %s: %w", table, err)
	}

	cols := []string{keyCol}
	vals := []any{keyVal}
	placeholders := []string{"?"}
	for k, v := range extra {
		cols = append(cols, k)
		vals = append(vals, v)
		placeholders = append(placeholders, "?")
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, table, joinCols(cols), joinCols(placeholders))
	res, err := db.ExecContext(ctx, query, vals...)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", table, err)
	}
	return res.LastInsertId()
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// ConversationRow is a conversation as stored, joined with its foreign
// identifiers already resolved.
type ConversationRow struct {
	ID            int64
	AgentID       int64
	WorkspaceID   sql.NullInt64
	SourceID      int64
	ExternalID    string
	Title         string
	SourcePath    string
	StartedAtMs   int64
	EndedAtMs     int64
	MessageCount  int
	MetadataJSON  string
	OriginKind    string
	OriginHost    string
}

// UpsertConversation inserts or updates a conversation keyed by
// (source_id, agent_id, external_id), the append-only-safe idempotence key
// required by spec.md's incremental re-ingest invariant. agent_id is part of
// the key because connector.ExternalID does not namespace the agent slug,
// so two distinct agents emitting the same native external_id under the
// default source_id="local" must not collide.
func (s *Store) UpsertConversation(ctx context.Context, c *model.Conversation, agentRowID, sourceRowID int64, workspaceRowID sql.NullInt64) (int64, error) {
	meta, err := json.Marshal(c.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal conversation metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversations
			(agent_id, workspace_id, source_id, external_id, title, source_path,
			 started_at_ms, ended_at_ms, message_count, metadata_json, origin_kind, origin_host)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source_id, agent_id, external_id) DO UPDATE SET
			agent_id = excluded.agent_id,
			title = excluded.title,
			source_path = excluded.source_path,
			started_at_ms = excluded.started_at_ms,
			ended_at_ms = excluded.ended_at_ms,
			message_count = excluded.message_count,
			metadata_json = excluded.metadata_json
		`,
		agentRowID, workspaceRowID, sourceRowID, c.ExternalID, c.Title, c.SourcePath,
		c.StartedAt, c.EndedAt, c.MessageCount, string(meta),
		string(c.Provenance.OriginKind), c.Provenance.OriginHost,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert conversation: %w", err)
	}

	// On the ON CONFLICT UPDATE path LastInsertId still reports the
	// connection's previous insert, so the row id is always re-selected.
	var id int64
	row := s.db.QueryRowContext(ctx, `SELECT id FROM conversations WHERE source_id = ? AND agent_id = ? AND external_id = ?`, sourceRowID, agentRowID, c.ExternalID)
	if err := row.Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve conversation id after upsert: %w", err)
	}
	return id, nil
}

// InsertMessagesBatch inserts messages for a conversation inside one
// transaction, skipping rows whose (conversation_id, idx) already exists —
// messages are append-only and never mutated once written (spec.md §3).
func (s *Store) InsertMessagesBatch(ctx context.Context, conversationID int64, messages []model.Message) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin message batch: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages
			(conversation_id, idx, role, content, created_at_ms, updated_at_ms, model, content_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id, idx) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare message insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, m := range messages {
		res, err := stmt.ExecContext(ctx, conversationID, m.Idx, string(m.Role), m.Content,
			m.CreatedAt, m.UpdatedAt, m.Model, m.ContentHash)
		if err != nil {
			return inserted, fmt.Errorf("insert message idx=%d: %w", m.Idx, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return inserted, fmt.Errorf("commit message batch: %w", err)
	}
	return inserted, nil
}

// IterConversations streams every conversation row, invoking fn for each; fn
// returning an error stops iteration and the error propagates.
func (s *Store) IterConversations(ctx context.Context, fn func(ConversationRow) error) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, agent_id, workspace_id, source_id, external_id, title, source_path,
		       started_at_ms, ended_at_ms, message_count, metadata_json, origin_kind, origin_host
		FROM conversations ORDER BY id`)
	if err != nil {
		return fmt.Errorf("iter conversations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c ConversationRow
		if err := rows.Scan(&c.ID, &c.AgentID, &c.WorkspaceID, &c.SourceID, &c.ExternalID, &c.Title,
			&c.SourcePath, &c.StartedAtMs, &c.EndedAtMs, &c.MessageCount, &c.MetadataJSON,
			&c.OriginKind, &c.OriginHost); err != nil {
			return fmt.Errorf("scan conversation: %w", err)
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return rows.Err()
}

// HitRow is the flattened message+conversation+agent+workspace+source join
// the vector-search path needs to render a full outcome.Hit — semantic
// search only carries a message row id, content hash, and score, so the
// rest of the display fields must be resolved back through the store.
type HitRow struct {
	MessageID   int64
	Idx         int
	Content     string
	CreatedAt   int64
	ContentHash string
	Agent       string
	Workspace   string
	SourceID    string
	OriginKind  string
	OriginHost  string
	SourcePath  string
	Title       string
}

// GetHitByMessageID resolves one message row id into a HitRow, or
// sql.ErrNoRows if the message no longer exists (e.g. it was deleted by a
// later full re-index while the vector index on disk is stale).
func (s *Store) GetHitByMessageID(ctx context.Context, messageID int64) (*HitRow, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT m.id, m.idx, m.content, m.created_at_ms, m.content_hash,
		       a.slug, COALESCE(w.path, ''), src.source_id, c.origin_kind, c.origin_host,
		       c.source_path, c.title
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		JOIN agents a ON a.id = c.agent_id
		JOIN sources src ON src.id = c.source_id
		LEFT JOIN workspaces w ON w.id = c.workspace_id
		WHERE m.id = ?`, messageID)

	var h HitRow
	if err := row.Scan(&h.MessageID, &h.Idx, &h.Content, &h.CreatedAt, &h.ContentHash,
		&h.Agent, &h.Workspace, &h.SourceID, &h.OriginKind, &h.OriginHost,
		&h.SourcePath, &h.Title); err != nil {
		return nil, fmt.Errorf("get hit by message id %d: %w", messageID, err)
	}
	return &h, nil
}

// GetMessages returns every message belonging to conversationID, ordered by
// idx ascending.
func (s *Store) GetMessages(ctx context.Context, conversationID int64) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, idx, role, content, created_at_ms, updated_at_ms, model, content_hash
		FROM messages WHERE conversation_id = ? ORDER BY idx`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		var m model.Message
		var role string
		if err := rows.Scan(&m.ID, &m.Idx, &role, &m.Content, &m.CreatedAt, &m.UpdatedAt, &m.Model, &m.ContentHash); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = model.Role(role)
		m.ConversationRef = conversationID
		out = append(out, m)
	}
	return out, rows.Err()
}
