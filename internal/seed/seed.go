// Package seed loads documents from a directory of JSON files into the
// document store and writes the store back out to such a directory.
//
// A seed file holds one document object or an array of them. Each file's
// checksum and document ids are recorded so unchanged files are skipped
// and documents of deleted files are removed.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/starford/folio/internal/apperr"
	"github.com/starford/folio/internal/docstore"
	"github.com/starford/folio/internal/storage"
)

// Store is the document store access seeding needs.
type Store interface {
	Put(ctx context.Context, body []byte) (*docstore.Document, error)
	Delete(ctx context.Context, id string) error
	Fetch(ctx context.Context, q docstore.Query) ([]docstore.Document, error)
	SeedSources(ctx context.Context) (map[string]docstore.SeedSource, error)
	RecordSeedSource(ctx context.Context, s docstore.SeedSource) error
	DeleteSeedSource(ctx context.Context, path string) error
}

// Report summarises one sync pass.
type Report struct {
	Loaded  int `json:"loaded"`
	Removed int `json:"removed"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Syncer keeps the store in line with a seed directory.
type Syncer struct {
	db     Store
	files  storage.Provider
	logger *slog.Logger
}

// NewSyncer creates a Syncer.
func NewSyncer(db Store, files storage.Provider, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{db: db, files: files, logger: logger}
}

// Sync walks the seed directory and brings the store up to date:
//   - new/changed files are decoded and their documents stored
//   - documents that disappeared from a file, or whose file was removed,
//     are deleted
func (s *Syncer) Sync(ctx context.Context) (Report, error) {
	var rep Report
	metas, err := s.files.List("")
	if err != nil {
		return rep, err
	}
	sources, err := s.db.SeedSources(ctx)
	if err != nil {
		return rep, err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}
		prev := sources[m.Path]
		if prev.Checksum == m.Checksum {
			rep.Skipped++
			continue
		}

		data, err := s.files.Read(m.Path)
		if err != nil {
			s.logger.Warn("seed: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			rep.Failed++
			continue
		}
		ids, err := s.loadFile(ctx, m.Path, data)
		if err != nil {
			s.logger.Warn("seed: load failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			rep.Failed++
			continue
		}
		rep.Loaded += len(ids)
		rep.Removed += s.removeMissing(ctx, prev.IDs, ids)

		if err := s.db.RecordSeedSource(ctx, docstore.SeedSource{Path: m.Path, Checksum: m.Checksum, IDs: ids}); err != nil {
			return rep, err
		}
		s.logger.Debug("seed: loaded", slog.String("path", m.Path), slog.Int("documents", len(ids)))
	}

	for p, src := range sources {
		if _, ok := disk[p]; ok {
			continue
		}
		rep.Removed += s.removeMissing(ctx, src.IDs, nil)
		if err := s.db.DeleteSeedSource(ctx, p); err != nil {
			return rep, err
		}
		s.logger.Debug("seed: removed stale", slog.String("path", p))
	}

	s.logger.Info("seed: sync complete",
		slog.Int("loaded", rep.Loaded),
		slog.Int("removed", rep.Removed),
		slog.Int("skipped", rep.Skipped),
		slog.Int("failed", rep.Failed))
	return rep, nil
}

// loadFile stores every document of one file. Documents are stored one by
// one; the file is reported as failed on the first error so it is retried
// on the next pass.
func (s *Syncer) loadFile(ctx context.Context, path string, data []byte) ([]string, error) {
	bodies, err := Decode(data)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(bodies))
	for i, b := range bodies {
		doc, err := s.db.Put(ctx, b)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", path, i, err)
		}
		ids = append(ids, doc.ID)
	}
	return ids, nil
}

func (s *Syncer) removeMissing(ctx context.Context, before, after []string) int {
	keep := make(map[string]struct{}, len(after))
	for _, id := range after {
		keep[id] = struct{}{}
	}
	n := 0
	for _, id := range before {
		if _, ok := keep[id]; ok {
			continue
		}
		err := s.db.Delete(ctx, id)
		switch {
		case err == nil:
			n++
		case errors.Is(err, apperr.ErrNotFound):
		default:
			s.logger.Warn("seed: delete failed", slog.String("id", id), slog.String("error", err.Error()))
		}
	}
	return n
}

// Decode splits a seed file into document bodies.
func Decode(data []byte) ([][]byte, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("seed: invalid JSON: %w", apperr.ErrInvalid)
	}
	root := gjson.ParseBytes(data)
	switch {
	case root.IsObject():
		return [][]byte{[]byte(root.Raw)}, nil
	case root.IsArray():
		var out [][]byte
		var bad bool
		root.ForEach(func(_, v gjson.Result) bool {
			if !v.IsObject() {
				bad = true
				return false
			}
			out = append(out, []byte(v.Raw))
			return true
		})
		if bad {
			return nil, fmt.Errorf("seed: array items must be objects: %w", apperr.ErrInvalid)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("seed: expected an object or array: %w", apperr.ErrInvalid)
	}
}
