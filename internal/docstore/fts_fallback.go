//go:build !sqlite_fts5

package docstore

import (
	"context"
	"database/sql"
	"fmt"
)

func initFTS(_ *sql.DB) error {
	// FTS5 not available; search uses LIKE over the documents table.
	return nil
}

func ftsUpsert(_ context.Context, _ *sql.Tx, _ string, _ []byte) error { return nil }

func ftsDelete(_ context.Context, _ *sql.Tx, _ string) {}

// Search performs a LIKE-based search over document titles and bodies
// (fallback when FTS5 is not compiled in).
func (db *DB) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + query + "%"
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, type, coalesce(json_extract(body, '$.title'), '')
		FROM documents
		WHERE json_extract(body, '$.title') LIKE ? OR body LIKE ?
		ORDER BY id
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, fmt.Errorf("docstore: search: %w", err)
	}
	defer rows.Close()

	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ID, &r.Type, &r.Title); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
