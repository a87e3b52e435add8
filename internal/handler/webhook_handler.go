package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"escolapay/internal/webhook"
)

// WebhookHandler receives provider payment notifications. Authentication and
// duplicate suppression run as route middleware before it; by the time Handle
// executes the delivery is trusted and first-seen.
type WebhookHandler struct {
	applier *webhook.Applier
	logger  *zap.Logger
}

func NewWebhookHandler(applier *webhook.Applier, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{applier: applier, logger: logger}
}

// Handle processes POST /payments/webhook. The provider retries on timeout or
// non-2xx, so everything except a store failure is acknowledged with 200 "ok".
func (h *WebhookHandler) Handle(c echo.Context) error {
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil {
		h.logger.Warn("failed to read webhook body", zap.Error(err))
		return c.String(http.StatusOK, "ok")
	}

	_, err = h.applier.Apply(c.Request().Context(), raw)
	switch {
	case errors.Is(err, webhook.ErrMalformedEvent):
		// Acknowledged so the provider stops re-delivering a payload that
		// will never parse; the fault is operator-visible in the logs.
		h.logger.Warn("malformed webhook event acknowledged", zap.Error(err))
		return c.String(http.StatusOK, "ok")
	case errors.Is(err, webhook.ErrStoreUnavailable):
		h.logger.Error("webhook processing failed, requesting redelivery", zap.Error(err))
		return c.String(http.StatusServiceUnavailable, "retry later")
	case err != nil:
		h.logger.Error("unexpected webhook error", zap.Error(err))
		return c.String(http.StatusOK, "ok")
	}

	return c.String(http.StatusOK, "ok")
}
