package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"

	"csv_stream_backend/config"
	"csv_stream_backend/pkg/logging"
)

const APIKeyHeader = "X-API-Key"

// APIKey guards every route with the shared key from config. Browsers cannot
// set headers on a WebSocket handshake, so the api_key query parameter is
// accepted as well.
func APIKey(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !cfg.RequireAPIKey || c.Method() == fiber.MethodOptions {
			return c.Next()
		}

		key := c.Get(APIKeyHeader)
		if key == "" {
			key = c.Query("api_key")
		}
		if key == "" {
			logging.Logger.Warn("missing API key", "method", c.Method(), "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "API key required"})
		}
		if cfg.APIKey == "" {
			logging.Logger.Error("API_KEY environment variable not set")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Server configuration error"})
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.APIKey)) != 1 {
			logging.Logger.Warn("invalid API key", "method", c.Method(), "path", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid API key"})
		}
		return c.Next()
	}
}
