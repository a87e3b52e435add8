package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// WebhookTokenHeader is the header the provider echoes the shared secret in.
const WebhookTokenHeader = "asaas-access-token"

// WebhookAuth validates the provider's shared-secret token. The comparison is
// constant-time; an empty configured secret rejects everything rather than
// accepting everything.
func WebhookAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get(WebhookTokenHeader)
			if secret == "" || token == "" {
				return c.String(http.StatusUnauthorized, "unauthorized")
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
				return c.String(http.StatusUnauthorized, "unauthorized")
			}
			return next(c)
		}
	}
}

// CORS configures CORS headers for the dashboard-facing endpoints.
func CORS() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Response().Header().Set("Access-Control-Allow-Origin", "*")
			c.Response().Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Response().Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			if c.Request().Method == http.MethodOptions {
				return c.NoContent(http.StatusOK)
			}
			return next(c)
		}
	}
}
