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
	"time"

	"github.com/JonMunkholm/catalogo/internal/archive"
	"github.com/JonMunkholm/catalogo/internal/cache"
	"github.com/JonMunkholm/catalogo/internal/config"
	"github.com/JonMunkholm/catalogo/internal/core"
	"github.com/JonMunkholm/catalogo/internal/events"
	"github.com/JonMunkholm/catalogo/internal/logging"
	"github.com/JonMunkholm/catalogo/internal/metrics"
	"github.com/JonMunkholm/catalogo/internal/store"
	"github.com/JonMunkholm/catalogo/internal/web"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env if present; real environment variables win.
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("configuration loaded", "config", cfg.String())

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}

	if cfg.Database.MigrateOnStart {
		if err := store.Migrate(pool); err != nil {
			slog.Error("failed to apply migrations", "error", err)
			os.Exit(1)
		}
	}

	importMetrics := metrics.New()
	opts := []core.Option{core.WithObserver(importMetrics)}

	if cfg.Cache.Addr != "" {
		c := cache.New(cache.Config{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		defer c.Close()
		if err := c.Ping(ctx); err != nil {
			slog.Warn("redis unreachable, invalidations will be retried per import", "addr", cfg.Cache.Addr, "error", err)
		}
		opts = append(opts, core.WithCache(c))
		slog.Info("cache invalidation enabled", "addr", cfg.Cache.Addr)
	}

	if len(cfg.Events.Brokers) > 0 {
		publisher := events.NewPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		defer func() {
			if err := publisher.Close(); err != nil {
				slog.Warn("kafka writer close failed", "error", err)
			}
		}()
		opts = append(opts, core.WithEvents(publisher))
		slog.Info("import events enabled", "brokers", cfg.Events.Brokers, "topic", cfg.Events.Topic)
	}

	if cfg.Archive.Endpoint != "" {
		archiver, err := archive.New(archive.Config{
			Endpoint:  cfg.Archive.Endpoint,
			AccessKey: cfg.Archive.AccessKey,
			SecretKey: cfg.Archive.SecretKey,
			Bucket:    cfg.Archive.Bucket,
			UseSSL:    cfg.Archive.UseSSL,
		})
		if err != nil {
			slog.Error("failed to create archive client", "error", err)
			os.Exit(1)
		}
		bucketCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		err = archiver.EnsureBucket(bucketCtx)
		cancel()
		if err != nil {
			slog.Error("failed to ensure archive bucket", "bucket", cfg.Archive.Bucket, "error", err)
			os.Exit(1)
		}
		opts = append(opts, core.WithArchiver(archiver))
		slog.Info("upload archive enabled", "endpoint", cfg.Archive.Endpoint, "bucket", cfg.Archive.Bucket)
	}

	service := core.NewService(store.New(pool), core.ServiceConfig{
		Reconciler: core.ReconcilerConfig{
			CreateChunkSize:  cfg.Import.CreateChunk,
			UpdateWidth:      cfg.Import.UpdateWidth,
			ErrorDetailLimit: cfg.Import.ErrorDetailLimit,
		},
		MaxFileSize:   cfg.Import.MaxFileSize,
		MaxProducts:   cfg.Import.MaxProducts,
		MaxConcurrent: cfg.Import.MaxConcurrent,
		MaxWait:       cfg.Import.MaxWait,
		Timeout:       cfg.Import.Timeout,
	}, opts...)

	server := web.NewServer(service, cfg, web.WithMetrics(importMetrics.Handler()))

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()
	go service.StartStatsRefresher(jobCtx, cfg.Stats.RefreshInterval)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.ImportStatus(); status.Activas > 0 {
			slog.Info("waiting for imports to complete", "active", status.Activas)
			if err := service.WaitForImports(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		return
	}
	<-shutdownDone
	slog.Info("server stopped")
}
