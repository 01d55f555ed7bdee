// Package storage owns the TagBox SQLite schema: table and index DDL,
// the FTS5 virtual table with its tokenizer fallback chain, and the
// triggers that keep the content-indexed columns in sync.
package storage

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

// CreateSchema creates every table, index, and the FTS5 virtual table for a
// fresh TagBox database. Table creation happens inside a transaction; the
// FTS5 virtual table and its triggers are created afterward, since SQLite
// does not allow virtual table DDL inside a transaction that also touches
// ordinary tables in some build configurations.
//
// Must be called with PRAGMA foreign_keys = ON already set on db.
func CreateSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer tx.Rollback()

	tables := []struct {
		name string
		ddl  string
	}{
		{"files", createFilesTable},
		{"authors", createAuthorsTable},
		{"file_authors", createFileAuthorsTable},
		{"author_aliases", createAuthorAliasesTable},
		{"tags", createTagsTable},
		{"file_tags", createFileTagsTable},
		{"categories", createCategoriesTable},
		{"file_metadata", createFileMetadataTable},
		{"file_links", createFileLinksTable},
		{"file_history", createFileHistoryTable},
		{"file_access_stats", createFileAccessStatsTable},
		{"system_config", createSystemConfigTable},
	}

	for _, table := range tables {
		if _, err := tx.Exec(table.ddl); err != nil {
			return fmt.Errorf("create %s table: %w", table.name, err)
		}
	}

	for i, idx := range getAllIndexes() {
		if _, err := tx.Exec(idx); err != nil {
			return fmt.Errorf("create index %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}

	if err := createFTSTable(db); err != nil {
		return fmt.Errorf("create fts table: %w", err)
	}

	if err := createFTSTriggers(db); err != nil {
		return fmt.Errorf("create fts triggers: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	tx, err = db.Begin()
	if err != nil {
		return fmt.Errorf("begin metadata transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO system_config (key, value, updated_at) VALUES ('schema_version', ?, ?)`,
		SchemaVersion, now,
	); err != nil {
		return fmt.Errorf("bootstrap system_config: %w", err)
	}

	return tx.Commit()
}

// SchemaVersion is the current schema generation. Bumped whenever the DDL
// in this file changes shape.
const SchemaVersion = "1"

// GetSchemaVersion reports the schema version recorded in system_config,
// or "0" for a database that has not been initialized yet.
func GetSchemaVersion(db *sql.DB) (string, error) {
	var exists int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'system_config'`,
	).Scan(&exists)
	if err != nil {
		return "", fmt.Errorf("check system_config existence: %w", err)
	}
	if exists == 0 {
		return "0", nil
	}

	var version string
	err = db.QueryRow(`SELECT value FROM system_config WHERE key = 'schema_version'`).Scan(&version)
	if err == sql.ErrNoRows {
		return "0", nil
	}
	if err != nil {
		return "", fmt.Errorf("query schema version: %w", err)
	}
	return version, nil
}

const createFilesTable = `
CREATE TABLE files (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    original_filename TEXT NOT NULL,
    initial_hash TEXT NOT NULL,
    current_hash TEXT NOT NULL,
    relative_path TEXT NOT NULL UNIQUE,
    original_path TEXT,
    size INTEGER NOT NULL DEFAULT 0,
    year INTEGER,
    publisher TEXT,
    source TEXT,
    category1 TEXT NOT NULL DEFAULT 'uncategorized',
    category2 TEXT,
    category3 TEXT,
    summary TEXT,
    full_text TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    last_accessed_at TEXT,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    deleted_at TEXT,
    UNIQUE(initial_hash)
)
`

const createAuthorsTable = `
CREATE TABLE authors (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

const createFileAuthorsTable = `
CREATE TABLE file_authors (
    file_id TEXT NOT NULL,
    author_id TEXT NOT NULL,
    position INTEGER NOT NULL DEFAULT 0,
    PRIMARY KEY (file_id, author_id),
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE,
    FOREIGN KEY (author_id) REFERENCES authors(id) ON DELETE CASCADE
)
`

// author_aliases.alias_id deliberately carries no foreign key: a merge
// hard-deletes the source author row but keeps the alias mapping alive,
// recording an id that may no longer exist in authors. Only canonical_id
// points at a live author.
const createAuthorAliasesTable = `
CREATE TABLE author_aliases (
    alias_id TEXT NOT NULL,
    canonical_id TEXT NOT NULL,
    merged_at TEXT NOT NULL,
    note TEXT,
    PRIMARY KEY (alias_id),
    FOREIGN KEY (canonical_id) REFERENCES authors(id) ON DELETE CASCADE
)
`

const createTagsTable = `
CREATE TABLE tags (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    path TEXT NOT NULL,
    parent_id TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    FOREIGN KEY (parent_id) REFERENCES tags(id) ON DELETE SET NULL
)
`

const createFileTagsTable = `
CREATE TABLE file_tags (
    file_id TEXT NOT NULL,
    tag_id TEXT NOT NULL,
    PRIMARY KEY (file_id, tag_id),
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE,
    FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
)
`

const createCategoriesTable = `
CREATE TABLE categories (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    level INTEGER NOT NULL,
    parent_id TEXT,
    created_at TEXT NOT NULL,
    UNIQUE(name, level, parent_id),
    FOREIGN KEY (parent_id) REFERENCES categories(id) ON DELETE CASCADE
)
`

const createFileMetadataTable = `
CREATE TABLE file_metadata (
    file_id TEXT NOT NULL,
    key TEXT NOT NULL,
    value TEXT NOT NULL,
    PRIMARY KEY (file_id, key),
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
)
`

const createFileLinksTable = `
CREATE TABLE file_links (
    file_id_a TEXT NOT NULL,
    file_id_b TEXT NOT NULL,
    relation_type TEXT NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (file_id_a, file_id_b, relation_type),
    FOREIGN KEY (file_id_a) REFERENCES files(id) ON DELETE CASCADE,
    FOREIGN KEY (file_id_b) REFERENCES files(id) ON DELETE CASCADE
)
`

const createFileHistoryTable = `
CREATE TABLE file_history (
    id TEXT PRIMARY KEY,
    file_id TEXT NOT NULL,
    operation TEXT NOT NULL,
    old_hash TEXT,
    new_hash TEXT,
    old_path TEXT,
    new_path TEXT,
    old_size INTEGER,
    new_size INTEGER,
    changed_at TEXT NOT NULL,
    changed_by TEXT,
    reason TEXT,
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
)
`

const createFileAccessStatsTable = `
CREATE TABLE file_access_stats (
    file_id TEXT PRIMARY KEY,
    access_count INTEGER NOT NULL DEFAULT 0,
    last_accessed_at TEXT,
    FOREIGN KEY (file_id) REFERENCES files(id) ON DELETE CASCADE
)
`

const createSystemConfigTable = `
CREATE TABLE system_config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TEXT NOT NULL
)
`

func getAllIndexes() []string {
	return []string{
		"CREATE INDEX idx_files_category1 ON files(category1)",
		"CREATE INDEX idx_files_category2 ON files(category2)",
		"CREATE INDEX idx_files_category3 ON files(category3)",
		"CREATE INDEX idx_files_year ON files(year)",
		"CREATE INDEX idx_files_is_deleted ON files(is_deleted)",
		"CREATE INDEX idx_files_current_hash ON files(current_hash)",
		"CREATE INDEX idx_file_authors_author ON file_authors(author_id)",
		"CREATE INDEX idx_file_tags_tag ON file_tags(tag_id)",
		"CREATE INDEX idx_tags_parent ON tags(parent_id)",
		"CREATE INDEX idx_author_aliases_canonical ON author_aliases(canonical_id)",
		"CREATE INDEX idx_file_history_file_id ON file_history(file_id)",
		"CREATE INDEX idx_file_history_operation ON file_history(operation)",
		"CREATE INDEX idx_file_links_b ON file_links(file_id_b)",
	}
}

// createFTSTable creates the files_fts virtual table, falling back through
// a chain of tokenizers: a CJK-aware tokenizer first, then plain unicode61,
// then legacy FTS4 on SQLite builds without FTS5. Every variant declares
// the same five columns; authors/tags are not auto-synced by
// trigger since they are derived from join tables (see createFTSTriggers
// and the explicit resync calls in internal/importer and internal/editor).
func createFTSTable(db *sql.DB) error {
	variants := []struct {
		name string
		ddl  string
	}{
		{"signal_cjk", `
			CREATE VIRTUAL TABLE files_fts USING fts5(
				title, authors, summary, tags, full_text,
				content='files', content_rowid='rowid',
				tokenize='signal_cjk porter unicode61 remove_diacritics 1'
			)`},
		{"unicode61", `
			CREATE VIRTUAL TABLE files_fts USING fts5(
				title, authors, summary, tags, full_text,
				content='files', content_rowid='rowid',
				tokenize='unicode61 remove_diacritics 1'
			)`},
		{"fts4", `
			CREATE VIRTUAL TABLE files_fts USING fts4(
				title, authors, summary, tags, full_text,
				content='files',
				tokenize=simple
			)`},
	}

	var lastErr error
	for _, v := range variants {
		if _, err := db.Exec(v.ddl); err == nil {
			log.Printf("storage: files_fts created with tokenizer %s", v.name)
			return nil
		} else {
			lastErr = err
			log.Printf("storage: tokenizer %s unavailable, falling back: %v", v.name, err)
		}
	}
	return fmt.Errorf("no FTS tokenizer variant succeeded: %w", lastErr)
}

// createFTSTriggers keeps files_fts in step with the files table. The insert
// trigger leaves the authors and tags FTS columns empty; the update trigger
// (on title/summary/full_text) recomputes them from file_authors/file_tags.
// A change to only the author or tag set fires neither trigger, so the
// caller that made it resyncs the row with SyncFileFTS (internal/importer
// and internal/editor both do).
func createFTSTriggers(db *sql.DB) error {
	triggers := []string{
		`CREATE TRIGGER files_ai AFTER INSERT ON files BEGIN
			INSERT INTO files_fts(rowid, title, authors, summary, tags, full_text)
			VALUES (new.rowid, new.title, '', new.summary, '', new.full_text);
		END`,
		`CREATE TRIGGER files_ad AFTER DELETE ON files BEGIN
			DELETE FROM files_fts WHERE rowid = old.rowid;
		END`,
		`CREATE TRIGGER files_au AFTER UPDATE OF title, summary, full_text ON files BEGIN
			DELETE FROM files_fts WHERE rowid = old.rowid;
			INSERT INTO files_fts(rowid, title, authors, summary, tags, full_text)
			SELECT new.rowid, new.title, COALESCE((
				SELECT group_concat(a.name, ' ') FROM authors a
				JOIN file_authors fa ON fa.author_id = a.id
				WHERE fa.file_id = new.id
			), ''), new.summary, COALESCE((
				SELECT group_concat(t.name, ' ') FROM tags t
				JOIN file_tags ft ON ft.tag_id = t.id
				WHERE ft.file_id = new.id
			), ''), new.full_text;
		END`,
	}

	for i, trigger := range triggers {
		if _, err := db.Exec(trigger); err != nil {
			return fmt.Errorf("create trigger %d: %w", i+1, err)
		}
	}
	return nil
}
