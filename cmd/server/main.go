package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/JonMunkholm/recordqa/internal/config"
	"github.com/JonMunkholm/recordqa/internal/core"
	"github.com/JonMunkholm/recordqa/internal/jobs"
	"github.com/JonMunkholm/recordqa/internal/logging"
	"github.com/JonMunkholm/recordqa/internal/reference"
	"github.com/JonMunkholm/recordqa/internal/schema"
	"github.com/JonMunkholm/recordqa/internal/store/memory"
	"github.com/JonMunkholm/recordqa/internal/store/postgres"
	"github.com/JonMunkholm/recordqa/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"database", cfg.Database.UsesDatabase(),
		"jobs_max_concurrent", cfg.Jobs.MaxConcurrent,
		"validation_workers", cfg.Validation.Workers,
		"rate_limit_enabled", cfg.Rate.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()
	store, closeStore, err := openStore(ctx, &cfg.Database)
	if err != nil {
		slog.Error("failed to open record store", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	registry, err := schema.NewRegistry(cfg.Validation.BlueprintDir)
	if err != nil {
		slog.Error("failed to load blueprints", "error", err)
		os.Exit(1)
	}
	slog.Info("blueprints registered", "count", registry.Len())

	validator := core.NewRecordValidator(
		core.DefaultRules(reference.Default()),
		core.WithDerivations(core.FullNameDerivation()),
	)
	service := core.NewService(store, validator, core.ServiceConfig{
		PageSize:   cfg.Merge.PageSize,
		Workers:    cfg.Validation.Workers,
		ExemptKeys: cfg.Merge.ExemptKeys,
	})

	runner := jobs.NewRunner(
		jobs.NewLimiter(cfg.Jobs.MaxConcurrent, cfg.Jobs.MaxWaitTime),
		cfg.Jobs.Timeout,
		cfg.Jobs.Retention,
	)

	server := web.NewServer(cfg, service, registry, runner)

	// Graceful shutdown: stop accepting requests, then let running jobs
	// finish within the shutdown timeout.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		if status := runner.Status(); status.Active > 0 {
			slog.Info("waiting for jobs to complete", "active", status.Active)
		}
		if err := runner.Shutdown(shutdownCtx); err != nil {
			slog.Warn("jobs did not complete in time", "error", err)
		} else {
			slog.Info("all jobs completed")
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
	<-stopped
	slog.Info("server stopped")
}

// openStore connects to PostgreSQL when a URL is configured and falls back
// to the in-memory store otherwise.
func openStore(ctx context.Context, cfg *config.DatabaseConfig) (core.RecordStore, func(), error) {
	if !cfg.UsesDatabase() {
		slog.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		return memory.New(), func() {}, nil
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, nil, err
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}

	store := postgres.New(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
