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
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"golang.org/x/sync/errgroup"

	"github.com/mweide/shadowtwin/internal/api"
	"github.com/mweide/shadowtwin/internal/fragments"
	"github.com/mweide/shadowtwin/internal/freshness"
	"github.com/mweide/shadowtwin/internal/migrate"
	"github.com/mweide/shadowtwin/internal/mirrorwatch"
	"github.com/mweide/shadowtwin/internal/models"
	"github.com/mweide/shadowtwin/internal/resolver"
	"github.com/mweide/shadowtwin/internal/sse"
	"github.com/mweide/shadowtwin/internal/storage"
	"github.com/mweide/shadowtwin/internal/syncback"
	"github.com/mweide/shadowtwin/internal/twin"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("vault_path", cfg.Vault.Path),
		slog.String("library", cfg.Library.ID),
		slog.String("primary_store", cfg.Library.PrimaryStore),
		slog.String("log_level", cfg.App.LogLevel.String()))

	// Connect to the document database.
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Warn("mongo disconnect failed", slog.String("error", err.Error()))
		}
	}()
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}

	repo, err := twin.NewRepository(ctx, client, cfg.Mongo.Database, cfg.Library.ID)
	if err != nil {
		return fmt.Errorf("init twin repository: %w", err)
	}
	runs := twin.NewMongoRunStore(client, cfg.Mongo.Database)

	// Initialize the file store. Optional: a database-only deployment leaves
	// the vault path empty and mirroring, sync, and migration degrade.
	var files storage.Provider
	if cfg.Vault.Path != "" {
		if err := os.MkdirAll(cfg.Vault.Path, 0o755); err != nil {
			return fmt.Errorf("create vault dir: %w", err)
		}
		fsProvider, err := storage.NewFS(cfg.Vault.Path)
		if err != nil {
			return fmt.Errorf("init storage: %w", err)
		}
		files = fsProvider
	}

	// Object storage for binary fragments.
	var objects fragments.ObjectStore
	if cfg.ObjectStore.Enabled() {
		objects = fragments.NewSupabaseStore(cfg.ObjectStore.URL, cfg.ObjectStore.Key, cfg.ObjectStore.Bucket)
	}
	uploader := fragments.New(objects, logger)

	libCfg := cfg.Library.Twin()
	svc := twin.NewService(libCfg, repo, files, logger)
	res := resolver.New(files)
	checker := freshness.NewChecker(libCfg, repo, files, res)
	syncer := syncback.New(svc, files, res, logger)

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)
	defer broker.Close()

	var engine *migrate.Engine
	if files != nil {
		engine = migrate.New(libCfg, files, svc, uploader, runs, logger,
			cfg.Library.MigrationWorkers, func(event string, data any) {
				broker.Publish(sse.Event{Type: event, Data: data})
			})
	}

	// Build API handler and router.
	h := api.NewHandler(svc, checker, syncer, engine, runs, uploader, files, broker)
	apiRouter := api.NewRouter(h, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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
		if err := client.Ping(req.Context(), readpref.Primary()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"degraded"}`))
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

	// Start mirror watcher feeding file-store edits back into the database.
	if files != nil && cfg.Vault.Watch && libCfg.MirrorExpected() {
		g.Go(func() error {
			err := mirrorwatch.Watch(gCtx, files, cfg.Vault.Path, func(ctx context.Context, sourceID, parentID string) {
				rep, err := syncer.SyncSource(ctx, sourceID, parentID)
				if err != nil {
					logger.Warn("watcher sync failed",
						slog.String("source", sourceID), slog.String("error", err.Error()))
					return
				}
				if rep.Synced > 0 {
					broker.PublishTwinEvent("synced", sourceID)
				}
			}, logger)
			if err != nil {
				logger.Error("mirror watcher failed", slog.String("error", err.Error()))
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

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// MigrationParams is the CLI-facing shape of one migration request.
type MigrationParams struct {
	RootFolderID      string
	Recursive         bool
	DryRun            bool
	CleanupFilesystem bool
	Limit             int
}

func (p MigrationParams) models() models.MigrationParams {
	return models.MigrationParams{
		RootFolderID:      p.RootFolderID,
		Recursive:         p.Recursive,
		DryRun:            p.DryRun,
		CleanupFilesystem: p.CleanupFilesystem,
		Limit:             p.Limit,
	}
}

// RunMigration executes the offline migration path used by the CLI.
func RunMigration(ctx context.Context, cfg *Config, params MigrationParams) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	if cfg.Vault.Path == "" {
		return fmt.Errorf("vault: path is required for migration")
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return fmt.Errorf("connect mongo: %w", err)
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("ping mongo: %w", err)
	}

	repo, err := twin.NewRepository(ctx, client, cfg.Mongo.Database, cfg.Library.ID)
	if err != nil {
		return fmt.Errorf("init twin repository: %w", err)
	}
	runs := twin.NewMongoRunStore(client, cfg.Mongo.Database)

	files, err := storage.NewFS(cfg.Vault.Path)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	var objects fragments.ObjectStore
	if cfg.ObjectStore.Enabled() {
		objects = fragments.NewSupabaseStore(cfg.ObjectStore.URL, cfg.ObjectStore.Key, cfg.ObjectStore.Bucket)
	}
	uploader := fragments.New(objects, logger)

	libCfg := cfg.Library.Twin()
	svc := twin.NewService(libCfg, repo, files, logger)
	engine := migrate.New(libCfg, files, svc, uploader, runs, logger, cfg.Library.MigrationWorkers, nil)

	run, err := engine.Run(ctx, params.models())
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	logger.Info("Migration finished",
		slog.String("run", run.RunID),
		slog.String("status", string(run.Status)),
		slog.Int("sources", run.Report.SourcesScanned),
		slog.Int("artifacts", run.Report.ArtifactsFound),
		slog.Int("upserted", run.Report.ArtifactsUpserted),
		slog.Int("deleted", run.Report.ArtifactsDeleted),
		slog.Int("folders_deleted", run.Report.FoldersDeleted),
		slog.Int("errors", len(run.Report.Errors)))
	return nil
}
