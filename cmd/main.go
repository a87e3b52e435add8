package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"escolapay/internal/bootstrap"
	"escolapay/internal/config"
	cronpkg "escolapay/internal/cron"
	"escolapay/internal/middleware"
	"escolapay/internal/notify"
	"escolapay/internal/provider"
	"escolapay/internal/repository"
	"escolapay/internal/router"
	"escolapay/internal/webhook"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// --- Database ---
	db, err := config.NewDatabase(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := bootstrap.Migrate(db); err != nil {
		logger.Fatal("Failed to migrate database schema", zap.Error(err))
	}

	// --- Repositories ---
	payments := repository.NewPaymentRepository(db)
	flags := repository.NewReconciliationRepository(db)

	// --- Provider client ---
	billing := provider.NewClient(cfg.Provider)

	// --- Operator notifier (optional) ---
	var notifier webhook.Notifier
	if cfg.Notify.BotToken != "" && cfg.Notify.ChatID != 0 {
		tg, err := notify.NewTelegramNotifier(cfg.Notify.BotToken, cfg.Notify.ChatID, logger)
		if err != nil {
			logger.Warn("Operator notifications disabled", zap.Error(err))
		} else {
			notifier = tg
		}
	}

	// --- Webhook applier ---
	applier := webhook.NewApplier(payments, flags, notifier, logger)

	// --- Webhook Deduper (Redis with in-memory fallback) ---
	eventDeduper, dedupeErr := middleware.NewEventDeduper(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		24*time.Hour,
	)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for webhook dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	// --- Routes ---
	router.Setup(e, cfg, payments, flags, billing, applier, eventDeduper, logger)

	// --- Reconciliation sweeper ---
	scheduler := cronpkg.New(&cfg.Reconcile, payments, flags, billing, applier, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal("Failed to start reconciliation scheduler", zap.Error(err))
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting payments server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop sweeper, wait for a running sweep to finish
	ctx := scheduler.Stop()
	<-ctx.Done()

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
