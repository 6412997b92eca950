package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"csv_stream_backend/config"
	"csv_stream_backend/pkg/logging"
)

func CORS(cfg *config.Config) fiber.Handler {
	allowOrigins := cfg.AllowOrigins
	if allowOrigins == "" {
		allowOrigins = "*"
	}
	logging.Logger.Info("CORS configured", "allow_origins", allowOrigins)
	return cors.New(cors.Config{
		AllowOrigins:  allowOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, X-API-Key",
		ExposeHeaders: "Content-Disposition",
	})
}
