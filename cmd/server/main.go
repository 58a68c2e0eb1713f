// Package main is the entrypoint for the SceneSwitch API server.
package main

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

	"github.com/joho/godotenv"

	"github.com/kiranshivaraju/sceneswitch/internal/api"
	"github.com/kiranshivaraju/sceneswitch/internal/api/handler"
	mw "github.com/kiranshivaraju/sceneswitch/internal/api/middleware"
	"github.com/kiranshivaraju/sceneswitch/internal/batch"
	"github.com/kiranshivaraju/sceneswitch/internal/cache"
	"github.com/kiranshivaraju/sceneswitch/internal/catalog"
	"github.com/kiranshivaraju/sceneswitch/internal/config"
	"github.com/kiranshivaraju/sceneswitch/internal/media"
	"github.com/kiranshivaraju/sceneswitch/internal/provider"
	"github.com/kiranshivaraju/sceneswitch/internal/staging"
	"github.com/kiranshivaraju/sceneswitch/internal/store"
)

const (
	shutdownTimeout = 30 * time.Second
	// interruptedReason marks batches a previous process left running.
	interruptedReason = "interrupted by server restart"
	// maxFilesPerBatch bounds the size of a single upload request.
	maxFilesPerBatch = 20
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine: production sets the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("reading .env", "error", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded", "provider", cfg.Provider.Kind, "stager", cfg.Staging.Kind, "env", cfg.Server.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	if err := store.RunMigrations(cfg.Database.URL, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("database migrations applied")

	pgStore := store.NewPostgresStore(pool)
	if n, err := pgStore.FailInterruptedBatches(ctx, interruptedReason); err != nil {
		return fmt.Errorf("fail interrupted batches: %w", err)
	} else if n > 0 {
		slog.Warn("marked interrupted batches as failed", "count", n)
	}

	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	transformer, err := provider.NewProvider(cfg.Provider)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}
	slog.Info("transformation provider initialized", "provider", transformer.Name())

	cat, err := catalog.Load(cfg.Batch.CatalogFile)
	if err != nil {
		return fmt.Errorf("load effect catalog: %w", err)
	}

	stager, err := staging.NewStager(ctx, cfg.Staging)
	if err != nil {
		return fmt.Errorf("create stager: %w", err)
	}

	var stagedDir string
	if local, ok := stager.(*staging.LocalStager); ok {
		stagedDir = local.Dir()
		janitor, err := staging.NewJanitor(stagedDir, cfg.Staging.MaxAge, cfg.Staging.CleanupSchedule, slog.Default())
		if err != nil {
			return fmt.Errorf("create staging janitor: %w", err)
		}
		janitor.Start()
		defer janitor.Stop(context.Background())
	}

	intake, err := media.NewIntake(cfg.Upload)
	if err != nil {
		return fmt.Errorf("create intake: %w", err)
	}

	orch := batch.NewOrchestrator(stager, transformer, cat, batch.PolicyFromConfig(cfg.Batch), batch.WithLogger(slog.Default()))
	svc := batch.NewService(orch, pgStore, redisCache, cfg.Redis.ProgressTTL, slog.Default())

	auth := mw.NewAuth(pgStore)
	rateLimit := mw.NewRateLimit(redisCache, cfg.Server.RequestsPerMin)

	// Room for every file at the size limit plus form overhead.
	maxRequest := cfg.Upload.MaxBytes*maxFilesPerBatch + 1<<20

	router := api.NewRouter(api.Dependencies{
		Auth:           auth,
		RateLimit:      rateLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		StagedDir:      stagedDir,

		HealthHandler:      handler.NewHealthHandler(pgStore, redisCache, transformer),
		EffectsHandler:     handler.NewEffectsHandler(cat),
		CreateBatchHandler: handler.NewCreateBatchHandler(svc, intake, maxRequest),
		ListBatchesHandler: handler.NewListBatchesHandler(svc),
		GetBatchHandler:    handler.NewGetBatchHandler(svc),
		CancelBatchHandler: handler.NewCancelBatchHandler(svc),
		CreateKeyHandler:   handler.NewCreateKeyHandler(pgStore),
		ListKeysHandler:    handler.NewListKeysHandler(pgStore),
		RevokeKeyHandler:   handler.NewRevokeKeyHandler(pgStore),
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("batch shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}
