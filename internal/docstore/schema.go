// Package docstore provides a SQLite-backed JSON document store with
// queries, point reads and atomic multi-patch transactions.
package docstore

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	id         TEXT PRIMARY KEY,
	type       TEXT NOT NULL,
	body       TEXT NOT NULL,
	rev        TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_documents_type ON documents(type);

CREATE TABLE IF NOT EXISTS seed_sources (
	path     TEXT PRIMARY KEY,
	checksum TEXT NOT NULL,
	ids      TEXT NOT NULL DEFAULT '[]'
);
`

// ChangeHook is called after a committed write. kind is one of
// "created", "updated", "deleted".
type ChangeHook func(kind, id string)

// Option configures a DB.
type Option func(*DB)

// WithChangeHook registers a hook invoked after every committed write.
func WithChangeHook(h ChangeHook) Option {
	return func(db *DB) {
		db.hook = h
	}
}

// DB wraps a sql.DB with document operations.
type DB struct {
	conn *sql.DB
	hook ChangeHook
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string, opts ...Option) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("docstore: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: apply schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("docstore: init fts: %w", err)
	}
	db := &DB{conn: conn}
	for _, opt := range opts {
		opt(db)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) notify(kind, id string) {
	if db.hook != nil {
		db.hook(kind, id)
	}
}
