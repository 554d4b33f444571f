//go:build sqlite_fts5

package docstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

func initFTS(conn *sql.DB) error {
	_, err := conn.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
			id UNINDEXED,
			title,
			body,
			tokenize = 'unicode61 remove_diacritics 2'
		);
	`)
	return err
}

func ftsUpsert(ctx context.Context, tx *sql.Tx, id string, body []byte) error {
	_, _ = tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE id = ?`, id)
	_, err := tx.ExecContext(ctx, `INSERT INTO documents_fts (id, title, body) VALUES (?, ?, ?)`,
		id, gjson.GetBytes(body, "title").String(), searchText(body))
	if err != nil {
		return fmt.Errorf("docstore: upsert fts %s: %w", id, err)
	}
	return nil
}

func ftsDelete(ctx context.Context, tx *sql.Tx, id string) {
	_, _ = tx.ExecContext(ctx, `DELETE FROM documents_fts WHERE id = ?`, id)
}

// nonText are string fields that hold identifiers or URLs, not prose.
var nonText = map[string]bool{
	"anchorId": true, "pageSectionId": true, "linkType": true, "href": true,
	"url": true, "style": true, "listItem": true, "preset": true, "current": true,
}

// searchText collects the prose of a document body.
func searchText(body []byte) string {
	var parts []string
	var walk func(key string, v gjson.Result)
	walk = func(key string, v gjson.Result) {
		switch {
		case v.IsObject() || v.IsArray():
			v.ForEach(func(k, child gjson.Result) bool {
				walk(k.String(), child)
				return true
			})
		case v.Type == gjson.String:
			if key == "" || strings.HasPrefix(key, "_") || nonText[key] {
				return
			}
			parts = append(parts, v.String())
		}
	}
	parsed := gjson.ParseBytes(body)
	parsed.ForEach(func(k, v gjson.Result) bool {
		if k.String() != "title" {
			walk(k.String(), v)
		}
		return true
	})
	return strings.Join(parts, " ")
}

// Search performs an FTS5 full-text search and returns matching results with snippets.
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT f.id,
		       d.type,
		       f.title,
		       snippet(documents_fts, 2, '<b>', '</b>', '...', 64)
		FROM documents_fts f
		JOIN documents d ON d.id = f.id
		WHERE documents_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("docstore: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Type, &r.Title, &r.Snippet); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
