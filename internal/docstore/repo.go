package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/checksum"
	"github.com/starford/folio/internal/docpath"
)

const selectDocument = `SELECT id, type, rev, body, updated_at FROM documents`

// Query selects documents for Fetch. A document matches when its type is
// in Types, OR it exposes any of ArrayFields as a JSON array, OR its id is
// in IDs. An empty query matches every document.
type Query struct {
	Types       []string
	ArrayFields []string
	IDs         []string
}

// SearchResult is one search hit.
type SearchResult struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(s rowScanner) (*Document, error) {
	var d Document
	var body []byte
	if err := s.Scan(&d.ID, &d.Type, &d.Rev, &body, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Body = json.RawMessage(body)
	d.Title = gjson.GetBytes(body, "title").String()
	return &d, nil
}

func scanDocuments(rows *sql.Rows) ([]Document, error) {
	defer rows.Close()
	var out []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// Put inserts or replaces a document.
func (db *DB) Put(ctx context.Context, body []byte) (*Document, error) {
	return db.put(ctx, body, "", false)
}

// PutIfRevision replaces a document only when its stored revision is rev.
func (db *DB) PutIfRevision(ctx context.Context, body []byte, rev string) (*Document, error) {
	return db.put(ctx, body, rev, false)
}

// Create inserts a document that must not exist yet.
func (db *DB) Create(ctx context.Context, body []byte) (*Document, error) {
	return db.put(ctx, body, "", true)
}

func (db *DB) put(ctx context.Context, body []byte, ifRev string, mustCreate bool) (*Document, error) {
	clean, id, typ, err := normalize(body)
	if err != nil {
		return nil, err
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var current string
	err = tx.QueryRowContext(ctx, `SELECT rev FROM documents WHERE id = ?`, id).Scan(&current)
	exists := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("docstore: read rev %s: %w", id, err)
	}
	switch {
	case mustCreate && exists:
		return nil, fmt.Errorf("docstore: create %s: %w", id, apperr.ErrAlreadyExists)
	case ifRev != "" && !exists:
		return nil, fmt.Errorf("docstore: put %s: %w", id, apperr.ErrNotFound)
	case ifRev != "" && ifRev != current:
		return nil, fmt.Errorf("docstore: put %s: %w", id, apperr.ErrConflict)
	}

	rev := checksum.Revision(clean)
	now := time.Now().UTC()
	if exists && rev == current {
		_ = tx.Rollback()
		return db.GetDocument(ctx, id)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, type, body, rev, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type       = excluded.type,
			body       = excluded.body,
			rev        = excluded.rev,
			updated_at = excluded.updated_at
	`, id, typ, string(clean), rev, now)
	if err != nil {
		return nil, fmt.Errorf("docstore: upsert %s: %w", id, err)
	}
	if err := ftsUpsert(ctx, tx, id, clean); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("docstore: commit: %w", err)
	}

	if exists {
		db.notify("updated", id)
	} else {
		db.notify("created", id)
	}
	return &Document{
		ID:        id,
		Type:      typ,
		Title:     gjson.GetBytes(clean, "title").String(),
		Rev:       rev,
		Body:      json.RawMessage(clean),
		UpdatedAt: now,
	}, nil
}

// GetDocument returns the document with the given id.
func (db *DB) GetDocument(ctx context.Context, id string) (*Document, error) {
	row := db.conn.QueryRowContext(ctx, selectDocument+` WHERE id = ?`, id)
	d, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("docstore: get %s: %w", id, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: get %s: %w", id, err)
	}
	return d, nil
}

// Fetch returns every document matching q, ordered by id.
func (db *DB) Fetch(ctx context.Context, q Query) ([]Document, error) {
	var conds []string
	var args []any
	if len(q.Types) > 0 {
		conds = append(conds, "type IN ("+placeholders(len(q.Types))+")")
		for _, t := range q.Types {
			args = append(args, t)
		}
	}
	for _, f := range q.ArrayFields {
		if !docpath.ValidField(f) {
			return nil, fmt.Errorf("docstore: fetch: invalid field %q", f)
		}
		conds = append(conds, "json_type(body, ?) = 'array'")
		args = append(args, "$."+f)
	}
	if len(q.IDs) > 0 {
		conds = append(conds, "id IN ("+placeholders(len(q.IDs))+")")
		for _, id := range q.IDs {
			args = append(args, id)
		}
	}

	query := selectDocument
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " OR ")
	}
	query += " ORDER BY id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("docstore: fetch: %w", err)
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, fmt.Errorf("docstore: fetch: %w", err)
	}
	return docs, nil
}

// List returns a page of documents, optionally filtered by type, and the
// total number of matches.
func (db *DB) List(ctx context.Context, typ string, limit, offset int) ([]Document, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	where := ""
	var args []any
	if typ != "" {
		where = " WHERE type = ?"
		args = append(args, typ)
	}

	var total int
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM documents`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("docstore: count: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, selectDocument+where+` ORDER BY updated_at DESC, id LIMIT ? OFFSET ?`,
		append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("docstore: list: %w", err)
	}
	docs, err := scanDocuments(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("docstore: list: %w", err)
	}
	return docs, total, nil
}

// Delete removes a document.
func (db *DB) Delete(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("docstore: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	res, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("docstore: delete %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("docstore: delete %s: %w", id, apperr.ErrNotFound)
	}
	ftsDelete(ctx, tx, id)
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("docstore: commit: %w", err)
	}
	db.notify("deleted", id)
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
