package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/starford/folio/internal/docstore"
	"github.com/starford/folio/internal/storage"
)

// ExportPath returns the file a document is exported to.
func ExportPath(d docstore.Document) string {
	return path.Join(d.Type, d.ID+storage.Ext)
}

// Export writes every stored document to dst as <type>/<id>.json and
// returns the number of files written. Documents whose id or type cannot
// be used as a file name are skipped. Files left in dst by documents that
// no longer exist are removed.
func Export(ctx context.Context, db Store, dst storage.Provider, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	docs, err := db.Fetch(ctx, docstore.Query{})
	if err != nil {
		return 0, err
	}
	n := 0
	written := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		if !safeName(d.ID) || !safeName(d.Type) {
			logger.Warn("export: skipped", slog.String("id", d.ID), slog.String("type", d.Type))
			continue
		}
		var buf bytes.Buffer
		if err := json.Indent(&buf, d.Body, "", "  "); err != nil {
			return n, fmt.Errorf("export %s: %w", d.ID, err)
		}
		buf.WriteByte('\n')
		if err := dst.Write(ExportPath(d), buf.Bytes()); err != nil {
			return n, err
		}
		written[ExportPath(d)] = struct{}{}
		n++
	}

	removed, err := prune(dst, written, logger)
	if err != nil {
		return n, err
	}
	logger.Info("export: complete",
		slog.Int("documents", n),
		slog.Int("removed", removed),
		slog.String("dir", dst.Root()))
	return n, nil
}

// prune deletes the document files in dst that are not in keep.
func prune(dst storage.Provider, keep map[string]struct{}, logger *slog.Logger) (int, error) {
	files, err := dst.List("")
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		if _, ok := keep[f.Path]; ok {
			continue
		}
		if err := dst.Delete(f.Path); err != nil {
			return removed, err
		}
		logger.Info("export: removed stale file", slog.String("path", f.Path))
		removed++
	}
	return removed, nil
}

func safeName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`) && !strings.HasPrefix(s, ".")
}
