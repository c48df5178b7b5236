package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rawwerks/cass/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "agent_search.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestEnsureAgentIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	id1, err := s.EnsureAgent(ctx, "claude-code")
	require.NoError(t, err)
	id2, err := s.EnsureAgent(ctx, "claude-code")
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestUpsertConversationAndMessagesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	agentID, err := s.EnsureAgent(ctx, "claude-code")
	require.NoError(t, err)
	sourceID, err := s.EnsureSource(ctx, "local", string(model.OriginLocal), "")
	require.NoError(t, err)

	conv := &model.Conversation{
		ExternalID: "sess-1",
		Title:      "debugging session",
		SourcePath: "/home/u/.claude/projects/p/sess-1.jsonl",
		StartedAt:  1000,
		Metadata:   map[string]string{},
		Provenance: model.Provenance{SourceID: "local", OriginKind: model.OriginLocal},
	}
	convID, err := s.UpsertConversation(ctx, conv, agentID, sourceID, sql.NullInt64{})
	require.NoError(t, err)
	require.NotZero(t, convID)

	// Re-upsert with the same external_id must resolve to the same row.
	convID2, err := s.UpsertConversation(ctx, conv, agentID, sourceID, sql.NullInt64{})
	require.NoError(t, err)
	require.Equal(t, convID, convID2)

	msgs := []model.Message{
		{Idx: 0, Role: model.RoleUser, Content: "hello", ContentHash: "h0"},
		{Idx: 1, Role: model.RoleAssistant, Content: "hi there", ContentHash: "h1"},
	}
	inserted, err := s.InsertMessagesBatch(ctx, convID, msgs)
	require.NoError(t, err)
	require.Equal(t, 2, inserted)

	// Re-inserting the same batch must not duplicate rows (append-only idempotence).
	inserted2, err := s.InsertMessagesBatch(ctx, convID, msgs)
	require.NoError(t, err)
	require.Equal(t, 0, inserted2)

	got, err := s.GetMessages(ctx, convID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "hello", got[0].Content)
	require.Equal(t, model.RoleAssistant, got[1].Role)
}

func TestUpsertConversationKeepsDistinctAgentsWithSameExternalID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	claudeID, err := s.EnsureAgent(ctx, "claude-code")
	require.NoError(t, err)
	codexID, err := s.EnsureAgent(ctx, "codex")
	require.NoError(t, err)
	sourceID, err := s.EnsureSource(ctx, "local", string(model.OriginLocal), "")
	require.NoError(t, err)

	base := model.Conversation{
		ExternalID: "sess-collision",
		SourcePath: "/irrelevant",
		Metadata:   map[string]string{},
		Provenance: model.Provenance{SourceID: "local", OriginKind: model.OriginLocal},
	}

	claudeConv := base
	claudeConv.Title = "claude session"
	claudeConvID, err := s.UpsertConversation(ctx, &claudeConv, claudeID, sourceID, sql.NullInt64{})
	require.NoError(t, err)

	codexConv := base
	codexConv.Title = "codex session"
	codexConvID, err := s.UpsertConversation(ctx, &codexConv, codexID, sourceID, sql.NullInt64{})
	require.NoError(t, err)

	require.NotEqual(t, claudeConvID, codexConvID, "same external_id under different agents must not collide")

	var storedAgentID int64
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT agent_id FROM conversations WHERE id = ?`, claudeConvID).Scan(&storedAgentID))
	require.Equal(t, claudeID, storedAgentID)
}

func TestIterConversations(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	agentID, _ := s.EnsureAgent(ctx, "codex")
	sourceID, _ := s.EnsureSource(ctx, "local", string(model.OriginLocal), "")

	for i := 0; i < 3; i++ {
		conv := &model.Conversation{
			ExternalID: "sess-" + string(rune('a'+i)),
			SourcePath: "/p",
			Metadata:   map[string]string{},
		}
		_, err := s.UpsertConversation(ctx, conv, agentID, sourceID, sql.NullInt64{})
		require.NoError(t, err)
	}

	count := 0
	err := s.IterConversations(ctx, func(ConversationRow) error {
		count++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, count)
}
