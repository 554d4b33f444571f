// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/anchors"
	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/docservice"
	"github.com/starford/folio/internal/docstore"
	"github.com/starford/folio/internal/render"
	"github.com/starford/folio/internal/seed"
	"github.com/starford/folio/internal/sse"
	"github.com/starford/folio/internal/storage"
)

// components are the long-lived objects shared by every command.
type components struct {
	logger  *slog.Logger
	db      *docstore.DB
	broker  *sse.Broker
	updater *anchors.Updater
	regen   *anchors.Regenerator
	svc     *docservice.Service
	seeder  *seed.Syncer
}

func (c *components) Close() {
	c.regen.Close()
	c.broker.Close()
	if err := c.db.Close(); err != nil {
		c.logger.Warn("close store", slog.String("error", err.Error()))
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOut: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// build wires the store, anchor maintenance, rendering and seeding from cfg.
func (a *application) build(ctx context.Context) (*components, error) {
	cfg := a.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_path", cfg.Store.Path),
		slog.String("seed_dir", cfg.Seed.Dir),
		slog.String("auth_mode", cfg.Auth.Mode),
		slog.String("log_level", cfg.App.LogLevel.String()))

	broker := sse.NewBroker(2 * time.Second)

	db, err := docstore.Open(cfg.Store.Path, docstore.WithChangeHook(broker.PublishDocumentEvent))
	if err != nil {
		broker.Close()
		return nil, fmt.Errorf("init store: %w", err)
	}

	updaterOpts := []anchors.UpdaterOption{
		anchors.WithDocumentTypes(cfg.Anchors.DocumentTypes...),
		anchors.WithLogger(logger),
	}
	if cfg.Anchors.StrictLinkType {
		updaterOpts = append(updaterOpts, anchors.WithStrictLinkType())
	}
	updater := anchors.NewUpdater(db, updaterOpts...)

	regen := anchors.NewRegenerator(ctx, db, updater,
		anchors.WithDebounce(cfg.Anchors.Debounce),
		anchors.WithSafetyTimeout(cfg.Anchors.SafetyTimeout),
		anchors.WithRegeneratorLogger(logger),
		anchors.WithResultHandler(func(res anchors.SyncResult) {
			if !res.Changed && res.Err == nil {
				return
			}
			data := map[string]any{"result": res}
			if res.Err != nil {
				data["error"] = res.Err.Error()
			}
			broker.Publish(sse.Event{Type: sse.TypeAnchorsUpdated, Data: data})
		}),
	)

	svc := docservice.NewService(db, updater, regen,
		docservice.WithProtectedTypes(cfg.Site.ProtectedTypes...),
		docservice.WithSite(render.Site{Name: cfg.Site.Name, BaseURL: cfg.Site.BaseURL}),
		docservice.WithRenderer(render.New(render.WithLogger(logger))),
		docservice.WithLogger(logger),
	)

	c := &components{
		logger:  logger,
		db:      db,
		broker:  broker,
		updater: updater,
		regen:   regen,
		svc:     svc,
	}

	if cfg.Seed.Dir != "" {
		// Ensure seed directory exists.
		if err := os.MkdirAll(cfg.Seed.Dir, 0o755); err != nil {
			c.Close()
			return nil, fmt.Errorf("create seed dir: %w", err)
		}
		files, err := storage.NewFS(cfg.Seed.Dir)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init seed storage: %w", err)
		}
		c.seeder = seed.NewSyncer(db, files, logger)

		// Run initial sync.
		rep, err := c.seeder.Sync(ctx)
		if err != nil {
			logger.Warn("initial seed sync failed", slog.String("error", err.Error()))
		} else {
			broker.Publish(sse.Event{Type: sse.TypeSeedSynced, Data: rep})
		}
	}

	return c, nil
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	c, err := app.build(ctx)
	if err != nil {
		return err
	}
	defer c.Close()
	logger := c.logger

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, c.broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, _, err := c.db.List(req.Context(), "", 1, 0); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start seed watcher with SSE callback.
	if c.seeder != nil && cfg.Seed.Watch {
		g.Go(func() error {
			err := c.seeder.Watch(gCtx, func(rep seed.Report) {
				c.broker.Publish(sse.Event{Type: sse.TypeSeedSynced, Data: rep})
			})
			if err != nil {
				logger.Error("seed watcher failed", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		timeout := cfg.App.HTTP.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		// Cancel gCtx so the seed watcher stops as well.
		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

var errShutdown = errors.New("shutdown")
