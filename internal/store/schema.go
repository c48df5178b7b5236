// Package store implements cass's durable relational layer: a single SQLite
// database under the data directory holding agents, workspaces, sources,
// conversations, messages, and snippets, plus the schema_version bookkeeping
// needed to detect and rebuild incompatible stores. The DDL-then-PRAGMA
// idiom and versioned-migration bookkeeping follow the teacher's
// internal/store/migrations.go and learning.go.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rawwerks/cass/internal/logging"
)

// CurrentSchemaVersion is the schema version this binary writes and expects.
//
// v1: initial agents/workspaces/sources/conversations/messages/snippets schema.
// v2: conversations.UNIQUE widened to (source_id, agent_id, external_id) so
// distinct agents sharing source_id="local" can't collide on external_id.
const CurrentSchemaVersion = 2

const schemaDDL = `
CREATE TABLE IF NOT EXISTS schema_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS agents (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	slug TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS workspaces (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	path               TEXT NOT NULL UNIQUE,
	workspace_original TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS sources (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id  TEXT NOT NULL UNIQUE,
	kind       TEXT NOT NULL,
	host_label TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS conversations (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	agent_id       INTEGER NOT NULL REFERENCES agents(id),
	workspace_id   INTEGER REFERENCES workspaces(id),
	source_id      INTEGER NOT NULL REFERENCES sources(id),
	external_id    TEXT NOT NULL,
	title          TEXT NOT NULL DEFAULT '',
	source_path    TEXT NOT NULL,
	started_at_ms  INTEGER NOT NULL DEFAULT 0,
	ended_at_ms    INTEGER NOT NULL DEFAULT 0,
	message_count  INTEGER NOT NULL DEFAULT 0,
	metadata_json  TEXT NOT NULL DEFAULT '{}',
	origin_kind    TEXT NOT NULL DEFAULT 'local',
	origin_host    TEXT NOT NULL DEFAULT '',
	UNIQUE(source_id, agent_id, external_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	conversation_id  INTEGER NOT NULL REFERENCES conversations(id),
	idx              INTEGER NOT NULL,
	role             TEXT NOT NULL,
	content          TEXT NOT NULL,
	created_at_ms    INTEGER NOT NULL DEFAULT 0,
	updated_at_ms    INTEGER NOT NULL DEFAULT 0,
	model            TEXT NOT NULL DEFAULT '',
	content_hash     TEXT NOT NULL,
	UNIQUE(conversation_id, idx)
);

CREATE TABLE IF NOT EXISTS snippets (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id    INTEGER NOT NULL REFERENCES messages(id),
	language      TEXT NOT NULL DEFAULT '',
	content       TEXT NOT NULL,
	start_offset  INTEGER NOT NULL DEFAULT 0,
	end_offset    INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_conversations_workspace ON conversations(workspace_id);
CREATE INDEX IF NOT EXISTS idx_conversations_agent ON conversations(agent_id);
CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
CREATE INDEX IF NOT EXISTS idx_messages_content_hash ON messages(content_hash);
CREATE INDEX IF NOT EXISTS idx_snippets_message ON snippets(message_id);
`

// Store wraps the cass SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the SQLite database at path, ensures the
// schema exists, and checks the schema version for compatibility. An
// incompatible version causes the caller to receive ErrIncompatibleVersion so
// it can back up and rebuild (see RebuildIncompatible).
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // single-writer store; see spec's single-writer backpressure design

	if _, err := db.Exec(schemaDDL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	version, err := getSchemaVersion(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	if version == 0 {
		if err := setSchemaVersion(db, CurrentSchemaVersion); err != nil {
			db.Close()
			return nil, err
		}
	} else if version != CurrentSchemaVersion {
		db.Close()
		return nil, &ErrIncompatibleVersion{Found: version, Want: CurrentSchemaVersion}
	}

	logging.Get(logging.CategoryStore).Info("opened store at %s (schema v%d)", path, CurrentSchemaVersion)
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying *sql.DB for callers (e.g. the FTS adapter) that
// need to read rows directly.
func (s *Store) DB() *sql.DB { return s.db }

// ErrIncompatibleVersion signals the on-disk schema predates or postdates
// what this binary understands.
type ErrIncompatibleVersion struct {
	Found int
	Want  int
}

func (e *ErrIncompatibleVersion) Error() string {
	return fmt.Sprintf("store schema version %d is incompatible with %d", e.Found, e.Want)
}

func getSchemaVersion(db *sql.DB) (int, error) {
	var v string
	err := db.QueryRow(`SELECT value FROM schema_meta WHERE key = 'schema_version'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	var n int
	if _, err := fmt.Sscanf(v, "%d", &n); err != nil {
		return 0, fmt.Errorf("parse schema_version %q: %w", v, err)
	}
	return n, nil
}

func setSchemaVersion(db *sql.DB, version int) error {
	_, err := db.Exec(
		`INSERT INTO schema_meta(key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprintf("%d", version),
	)
	return err
}
