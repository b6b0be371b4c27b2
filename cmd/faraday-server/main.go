// Faraday Server
//
// Features:
// - Project store persisted to a pluggable snapshot backend
//   (local, S3, PostgreSQL, SQLite, memory)
// - Chat function backed by an AI gateway or Ollama
// - Per-client rate limiting on chat
// - SSE stream of project transitions
// - Prometheus metrics & structured logging (zap)
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/faraday/faraday/internal/api"
	"github.com/faraday/faraday/internal/chat"
	"github.com/faraday/faraday/internal/config"
	"github.com/faraday/faraday/internal/events"
	"github.com/faraday/faraday/internal/gateway"
	"github.com/faraday/faraday/internal/logging"
	"github.com/faraday/faraday/internal/metrics"
	"github.com/faraday/faraday/internal/project"
	"github.com/faraday/faraday/internal/quota"
	"github.com/faraday/faraday/internal/storage"
	"github.com/faraday/faraday/internal/storage/local"
	"github.com/faraday/faraday/internal/watcher"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// Can't use structured logging yet
		panic("configuration error: " + err.Error())
	}

	// Initialize structured logging
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	}); err != nil {
		panic("logging init error: " + err.Error())
	}
	defer logging.Sync()

	logging.Info("Faraday server starting...",
		zap.String("listen", cfg.ListenAddr),
		zap.String("metrics", cfg.MetricsAddr),
		zap.String("storage", cfg.StorageBackend),
		zap.String("ai_provider", cfg.AIProvider))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Snapshot backend
	backend, err := storage.Open(ctx, cfg)
	if err != nil {
		logging.Fatal("storage init failed", zap.Error(err))
	}
	defer backend.Close()

	// SSE broadcaster
	broadcaster := events.NewBroadcaster()

	// Project store
	store := project.New(backend, project.WithEvents(broadcaster))
	outcome, err := store.Load(ctx)
	if err != nil {
		logging.Error("snapshot read failed, serving defaults", zap.Error(err))
	}
	logging.Info("project loaded",
		zap.String("source", outcome.Source),
		zap.String("reason", outcome.Reason),
		zap.Int("files", len(store.Snapshot().Files)))

	// Reload when another process rewrites the snapshot file
	if lb, ok := backend.(*local.LocalBackend); ok && cfg.WatchSnapshot {
		w, err := watcher.New(lb.PathFor(store.Key()), store, 0)
		if err != nil {
			logging.Fatal("watcher init failed", zap.Error(err))
		}
		if err := w.Start(ctx); err != nil {
			logging.Fatal("watcher start failed", zap.Error(err))
		}
		defer w.Stop()
		logging.Info("watching snapshot", zap.String("path", lb.PathFor(store.Key())))
	}

	// Chat function
	client, err := gateway.FromConfig(cfg)
	if err != nil {
		logging.Fatal("gateway init failed", zap.Error(err))
	}
	chatHandler := chat.NewHandler(client, cfg.MaxBodySize)

	rateLimiter := quota.NewRateLimiter(cfg.RateLimitPerMin)
	if rateLimiter.Enabled() {
		logging.Info("chat rate limit enabled", zap.Int("per_min", cfg.RateLimitPerMin))
	}

	srv := api.NewServer(store, chatHandler, broadcaster, rateLimiter, cfg.MaxBodySize)

	// Start metrics server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics server listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("metrics server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logging.Info("shutting down...")
		cancel()

		shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
		defer done()
		httpServer.Shutdown(shutdownCtx)
		metricsServer.Close()
	}()

	// Drop idle rate limiter buckets
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := rateLimiter.Cleanup(time.Hour); n > 0 {
					logging.Debug("rate limiter cleanup", zap.Int("removed", n))
				}
			}
		}
	}()

	logging.Info("server listening (HTTP)", zap.String("addr", cfg.ListenAddr))
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logging.Fatal("server error", zap.Error(err))
	}
}
