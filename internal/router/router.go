package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"escolapay/internal/config"
	"escolapay/internal/handler"
	"escolapay/internal/middleware"
	"escolapay/internal/provider"
	"escolapay/internal/repository"
	"escolapay/internal/webhook"
)

// Setup configures all routes for the Echo server.
func Setup(
	e *echo.Echo,
	cfg *config.Config,
	payments *repository.PaymentRepository,
	flags *repository.ReconciliationRepository,
	billing *provider.Client,
	applier *webhook.Applier,
	eventDeduper middleware.EventDeduper,
	logger *zap.Logger,
) {
	// Global middleware
	e.Use(echomw.Recover())
	e.Use(middleware.CORS())

	// Handlers
	paymentHandler := handler.NewPaymentHandler(payments, flags, billing, logger)
	webhookHandler := handler.NewWebhookHandler(applier, logger)

	// Payment routes
	paymentGroup := e.Group("/payments")
	paymentGroup.POST("/create", paymentHandler.CreateCharge)
	paymentGroup.GET("/:id", paymentHandler.GetPayment)

	// Webhook route (shared-secret auth + cross-process dedup)
	webhookGroup := e.Group("/payments/webhook")
	webhookGroup.Use(middleware.WebhookAuth(cfg.Provider.WebhookToken))
	webhookGroup.Use(middleware.WebhookDedup(eventDeduper))
	webhookGroup.POST("", webhookHandler.Handle)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})
}
