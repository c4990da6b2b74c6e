package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/stitchflow/labelrelay/internal/alert"
	"github.com/stitchflow/labelrelay/internal/api"
	"github.com/stitchflow/labelrelay/internal/api/middleware"
	"github.com/stitchflow/labelrelay/internal/config"
	"github.com/stitchflow/labelrelay/internal/core"
	"github.com/stitchflow/labelrelay/internal/dispatch"
	"github.com/stitchflow/labelrelay/internal/label"
	"github.com/stitchflow/labelrelay/internal/monitor"
	"github.com/stitchflow/labelrelay/internal/store"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	retry := core.RetryPolicy{
		MaxAttempts: cfg.Dispatch.MaxAttempts,
		Backoff:     cfg.Dispatch.Backoff,
	}

	db, err := store.OpenSQLite(cfg.Database.Path, retry)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.Database.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	transport := &dispatch.TCPTransport{Timeout: cfg.Dispatch.SocketTimeout}
	worker := dispatch.NewWorker(db, db, transport, cfg.Dispatch.PollInterval, logger)
	worker.Start()
	defer worker.Stop()

	var notifier monitor.Notifier
	if cfg.Monitor.AlertURL != "" {
		notifier = alert.NewNotifier(cfg.Monitor.AlertURL, cfg.Monitor.AlertSecret, 10*time.Second)
	}
	failureMonitor := monitor.New(db, cfg.Monitor.Interval, cfg.Monitor.Window, cfg.Monitor.FailureThreshold, notifier, logger)
	if err := failureMonitor.Start(); err != nil {
		logger.Error("failed to start failure monitor", "error", err)
		os.Exit(1)
	}
	defer failureMonitor.Stop()

	limiter := middleware.NewRateLimiter(cfg.Security.RateLimitMax, cfg.Security.RateLimitWindow)
	defer limiter.Stop()

	router := api.NewRouter(api.RouterConfig{
		Store:     db,
		Registry:  db,
		Encoder:   label.NewTSPLEncoder(),
		Logger:    logger,
		Signature: middleware.NewSignatureMiddleware(cfg.Security.SigningSecret),
		Limiter:   limiter,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
