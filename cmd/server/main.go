package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackmichael/creator-tasks/internal/config"
	"github.com/blackmichael/creator-tasks/internal/domain"
	"github.com/blackmichael/creator-tasks/internal/httpserver"
	"github.com/blackmichael/creator-tasks/internal/logging"
	"github.com/blackmichael/creator-tasks/internal/publishfeed"
	"github.com/blackmichael/creator-tasks/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.LogLevel)

	// One repository implements the user, article and cursor ports.
	repo, err := storage.Open(storage.Dialect(cfg.DatabaseDriver), cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("create repository: %w", err)
	}
	defer repo.Close()

	if err := repo.Migrate(context.Background()); err != nil {
		return err
	}
	logger.Info("connected to database", "driver", cfg.DatabaseDriver)

	taskService, err := domain.NewTaskService(repo, repo, repo, logger, domain.Options{
		Clock:         domain.SystemClock{Location: cfg.Location},
		Workers:       cfg.BatchWorkers,
		WriteAttempts: cfg.WriteAttempts,
	})
	if err != nil {
		return fmt.Errorf("create task service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if cfg.PublishFeedURL != "" {
		subscriber := publishfeed.NewSubscriber(cfg.PublishFeedURL, taskService, logger.With("component", "publishfeed"))
		go func() {
			if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("publish feed subscriber exited with error", "error", err)
			}
		}()
	} else {
		logger.Info("publish feed disabled")
	}

	if cfg.ExpiryReportInterval > 0 {
		go taskService.StartExpiryReportJob(ctx, cfg.ExpiryReportInterval)
	}

	server := httpserver.NewServer(cfg, taskService, logger.With("component", "http"))
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "timezone", cfg.Location.String())

	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}
