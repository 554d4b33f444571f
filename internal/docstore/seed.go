package docstore

import (
	"context"
	"encoding/json"
	"fmt"
)

// SeedSource records which documents were loaded from a seed file.
type SeedSource struct {
	Path     string
	Checksum string
	IDs      []string
}

// SeedSources returns every recorded seed file keyed by path.
func (db *DB) SeedSources(ctx context.Context) (map[string]SeedSource, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT path, checksum, ids FROM seed_sources`)
	if err != nil {
		return nil, fmt.Errorf("docstore: seed sources: %w", err)
	}
	defer rows.Close()

	out := make(map[string]SeedSource)
	for rows.Next() {
		var s SeedSource
		var ids string
		if err := rows.Scan(&s.Path, &s.Checksum, &ids); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(ids), &s.IDs)
		out[s.Path] = s
	}
	return out, rows.Err()
}

// RecordSeedSource inserts or replaces a seed file record.
func (db *DB) RecordSeedSource(ctx context.Context, s SeedSource) error {
	ids, _ := json.Marshal(s.IDs)
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO seed_sources (path, checksum, ids) VALUES (?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET checksum = excluded.checksum, ids = excluded.ids
	`, s.Path, s.Checksum, string(ids))
	if err != nil {
		return fmt.Errorf("docstore: record seed source %s: %w", s.Path, err)
	}
	return nil
}

// DeleteSeedSource forgets a seed file record.
func (db *DB) DeleteSeedSource(ctx context.Context, path string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM seed_sources WHERE path = ?`, path); err != nil {
		return fmt.Errorf("docstore: delete seed source %s: %w", path, err)
	}
	return nil
}
