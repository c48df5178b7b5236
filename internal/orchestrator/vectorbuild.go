package orchestrator

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/rawwerks/cass/internal/embedding"
	"github.com/rawwerks/cass/internal/logging"
	"github.com/rawwerks/cass/internal/store"
	"github.com/rawwerks/cass/internal/vectorindex"
)

// BuildVectorIndex re-embeds every stored message and writes a fresh .cvvi
// file at path (spec.md §4.E, §6). It always performs a full rebuild rather
// than an incremental upsert: the row table's O(1)-by-index addressing
// assumes a stable row ordering that in-place incremental appends would
// need a free-list to preserve safely, which is out of scope here — see
// DESIGN.md.
func BuildVectorIndex(ctx context.Context, st *store.Store, emb embedding.Embedder, path string) (int, error) {
	log := logging.Get(logging.CategoryOrchestrator)
	var entries []vectorindex.Entry

	err := st.IterConversations(ctx, func(c store.ConversationRow) error {
		messages, err := st.GetMessages(ctx, c.ID)
		if err != nil {
			return fmt.Errorf("load messages for conversation %d: %w", c.ID, err)
		}
		for _, m := range messages {
			if m.Content == "" {
				continue
			}
			entries = append(entries, vectorindex.Entry{
				ContentHash: contentHashBytes(m.ContentHash),
				MessageID:   uint64(m.ID),
				AgentEnum:   0,
				Timestamp:   m.CreatedAt,
				Vector:      emb.Embed(m.Content),
			})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := vectorindex.Write(path, emb.Dimension(), vectorindex.QuantizationFP32, entries); err != nil {
		return 0, fmt.Errorf("write vector index: %w", err)
	}
	log.Info("built vector index at %s (%d entries)", path, len(entries))
	return len(entries), nil
}

func contentHashBytes(hexHash string) [32]byte {
	var out [32]byte
	b, err := hex.DecodeString(hexHash)
	if err != nil || len(b) != 32 {
		return out
	}
	copy(out[:], b)
	return out
}
