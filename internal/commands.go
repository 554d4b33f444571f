package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/starford/folio/internal/anchors"
	"github.com/starford/folio/internal/mcpserver"
	"github.com/starford/folio/internal/seed"
	"github.com/starford/folio/internal/storage"
)

// RunMCP serves the MCP tools on stdin/stdout until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	c, err := app.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	c.logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.svc).ServeStdio()
}

// Export writes every stored document to dir as <type>/<id>.json and
// returns the number of files written.
func Export(ctx context.Context, dir string, opts ...Option) (int, error) {
	app, err := newApplication(opts)
	if err != nil {
		return 0, err
	}
	c, err := app.build(ctx)
	if err != nil {
		return 0, err
	}
	defer c.Close()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create export dir: %w", err)
	}
	dst, err := storage.NewFS(dir)
	if err != nil {
		return 0, fmt.Errorf("init export storage: %w", err)
	}
	n, err := seed.Export(ctx, c.db, dst, c.logger)
	if err != nil {
		return n, err
	}
	c.logger.Info("export complete", slog.String("dir", dst.Root()), slog.Int("documents", n))
	return n, nil
}

// RepairAnchors rewrites links from one anchor id of a document to another.
// It is the offline counterpart of an anchor rename.
func RepairAnchors(ctx context.Context, req anchors.Request, opts ...Option) (anchors.Result, error) {
	app, err := newApplication(opts)
	if err != nil {
		return anchors.Result{}, err
	}
	c, err := app.build(ctx)
	if err != nil {
		return anchors.Result{}, err
	}
	defer c.Close()

	res := c.updater.UpdateAnchorReferences(ctx, req)
	if !res.Success {
		return res, fmt.Errorf("repair anchors: %s", res.Error)
	}
	return res, nil
}
