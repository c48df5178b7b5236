package ftsindex

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/rawwerks/cass/internal/logging"
)

const schemaHashFileName = "schema.hash"

// reloadDebounce amortizes reader-reload storms during bulk indexing
// (spec.md §4.D: "reloads are debounced (≥300 ms)").
const reloadDebounce = 300 * time.Millisecond

// Index wraps a bleve.Index with cass's schema-version gating and debounced
// reload.
type Index struct {
	dir   string
	bleve bleve.Index

	mu           sync.Mutex
	pendingWrite bool
	reloadTimer  *time.Timer
}

// Open opens the bleve index at dir, creating it with BuildMapping if
// absent. If the schema.hash file beside dir is missing or doesn't match the
// current SchemaHash, the directory is discarded and rebuilt fresh — the
// caller is responsible for re-driving a full ingest afterward (the
// orchestrator owns that).
func Open(dir string) (*Index, bool, error) {
	hash, err := SchemaHash()
	if err != nil {
		return nil, false, fmt.Errorf("compute schema hash: %w", err)
	}
	hashPath := filepath.Join(filepath.Dir(dir), schemaHashFileName)

	rebuilt := false
	existingHash, readErr := os.ReadFile(hashPath)
	if readErr != nil || string(existingHash) != hash {
		if _, statErr := os.Stat(dir); statErr == nil {
			if err := os.RemoveAll(dir); err != nil {
				return nil, false, fmt.Errorf("discard stale index: %w", err)
			}
			rebuilt = true
		}
	}

	var idx bleve.Index
	if _, statErr := os.Stat(dir); statErr == nil {
		idx, err = bleve.Open(dir)
		if err != nil {
			return nil, false, fmt.Errorf("open bleve index: %w", err)
		}
	} else {
		m, err := BuildMapping()
		if err != nil {
			return nil, false, fmt.Errorf("build index mapping: %w", err)
		}
		idx, err = bleve.New(dir, m)
		if err != nil {
			return nil, false, fmt.Errorf("create bleve index: %w", err)
		}
		rebuilt = true
	}

	if err := os.WriteFile(hashPath, []byte(hash), 0o644); err != nil {
		idx.Close()
		return nil, false, fmt.Errorf("write schema hash: %w", err)
	}

	logging.Get(logging.CategoryFTSIndex).Info("opened fts index at %s (rebuilt=%v)", dir, rebuilt)
	return &Index{dir: dir, bleve: idx}, rebuilt, nil
}

func (i *Index) Close() error {
	i.mu.Lock()
	if i.reloadTimer != nil {
		i.reloadTimer.Stop()
	}
	i.mu.Unlock()
	return i.bleve.Close()
}

// docID is the bleve document id for one message: stable and derivable from
// the relational row id alone, so re-indexing the same message overwrites
// rather than duplicates.
func docID(messageID int64) string {
	return fmt.Sprintf("m%d", messageID)
}

// IndexMessage upserts one message document and schedules a debounced
// reader reload.
func (i *Index) IndexMessage(messageID int64, doc Doc) error {
	doc.TitlePrefix = doc.Title
	doc.ContentPrefix = doc.Content
	if doc.Preview == "" {
		doc.Preview = preview(doc.Content)
	}
	if err := i.bleve.Index(docID(messageID), doc); err != nil {
		return fmt.Errorf("index message %d: %w", messageID, err)
	}
	i.scheduleReload()
	return nil
}

// IndexBatch upserts many message documents in one bleve batch —
// spec.md §4.D expects commits to be batched during bulk ingest, not
// per-document.
func (i *Index) IndexBatch(docs map[int64]Doc) error {
	batch := i.bleve.NewBatch()
	for messageID, doc := range docs {
		doc.TitlePrefix = doc.Title
		doc.ContentPrefix = doc.Content
		if doc.Preview == "" {
			doc.Preview = preview(doc.Content)
		}
		if err := batch.Index(docID(messageID), doc); err != nil {
			return fmt.Errorf("add to batch: %w", err)
		}
	}
	if err := i.bleve.Batch(batch); err != nil {
		return fmt.Errorf("execute index batch: %w", err)
	}
	i.scheduleReload()
	return nil
}

// Truncate discards and recreates the index (full mode).
func (i *Index) Truncate() error {
	if err := i.bleve.Close(); err != nil {
		return err
	}
	if err := os.RemoveAll(i.dir); err != nil {
		return err
	}
	m, err := BuildMapping()
	if err != nil {
		return err
	}
	idx, err := bleve.New(i.dir, m)
	if err != nil {
		return err
	}
	i.bleve = idx
	return nil
}

// scheduleReload records a pending write and arms a single reloadDebounce
// timer; repeated calls while the timer is armed collapse into it. When it
// fires it only clears pendingWrite and logs a debug line: no reader is
// reopened here, and nothing else reads pendingWrite. Searches go straight
// to bleve, whose reader already reflects committed writes on the next
// Search call.
func (i *Index) scheduleReload() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pendingWrite = true
	if i.reloadTimer != nil {
		return
	}
	i.reloadTimer = time.AfterFunc(reloadDebounce, func() {
		i.mu.Lock()
		i.pendingWrite = false
		i.reloadTimer = nil
		i.mu.Unlock()
		logging.Get(logging.CategoryFTSIndex).Debug("reader reload debounce elapsed")
	})
}

// Bleve exposes the underlying bleve.Index for the query planner's search
// execution.
func (i *Index) Bleve() bleve.Index { return i.bleve }

func preview(content string) string {
	const previewLen = 200
	r := []rune(content)
	if len(r) <= previewLen {
		return content
	}
	return string(r[:previewLen])
}
