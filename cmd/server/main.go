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

	"golang.org/x/sync/errgroup"

	h "github.com/veranemoloko/media-downloader/internal/api/http"
	"github.com/veranemoloko/media-downloader/internal/auditlog"
	cfgpkg "github.com/veranemoloko/media-downloader/internal/config"
	"github.com/veranemoloko/media-downloader/internal/delivery"
	"github.com/veranemoloko/media-downloader/internal/media"
	"github.com/veranemoloko/media-downloader/internal/progress"
	repo "github.com/veranemoloko/media-downloader/internal/repository"
	svc "github.com/veranemoloko/media-downloader/internal/service"
	"github.com/veranemoloko/media-downloader/internal/storage"
	"github.com/veranemoloko/media-downloader/internal/validation"
	"github.com/veranemoloko/media-downloader/internal/worker"
	"github.com/veranemoloko/media-downloader/internal/ytdlp"
)

func main() {
	cfg, err := cfgpkg.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfgpkg.SetupLogger(cfg)
	logger.Info("configuration loaded successfully", "env", cfg.Environment)

	taskStorage, err := repo.NewTaskStorage(cfg.StateFile)
	if err != nil {
		logger.Error("failed to initialize file repository", "error", err)
		os.Exit(1)
	}

	delivered := storage.NewFileStorage(cfg.DeliveryFolder)
	deliverer, err := delivery.Auto(cfg, delivered, logger)
	if err != nil {
		logger.Error("failed to set up delivery", "error", err)
		os.Exit(1)
	}

	notifier := svc.NewTaskNotifier(taskStorage, logger)
	engine := ytdlp.NewEngine(cfg.YTDLPPath, logger)
	downloadService := svc.NewDownloadService(
		ytdlp.NewResolver(cfg),
		engine,
		media.NewConverter(cfg.FFmpegPath, logger),
		deliverer,
		progress.NewThrottler(progress.NewMemoryStore(), notifier, logger),
		notifier,
		logger,
	)

	pool := worker.NewPool(cfg.Workers, cfg.QueueSize, logger)
	taskService := svc.NewTaskService(
		taskStorage,
		pool,
		downloadService,
		engine,
		validation.NewPolicy(cfg.BlacklistedDomains),
		auditlog.NewWebhook(cfg.LogsWebhookURL, logger),
		cfg.MaxFilesize,
		logger,
	)

	if n, err := taskService.FailInterrupted(context.Background()); err != nil {
		logger.Error("failed to close interrupted tasks", "error", err)
	} else if n > 0 {
		logger.Info("interrupted tasks marked failed", "count", n)
	}

	cookieService := svc.NewCookieService(cfg.CookiesFile, logger)
	router := h.NewRouter(cfg, taskService, cookieService, delivered, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		IdleTimeout:  cfg.HTTPTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return pool.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		logger.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}
