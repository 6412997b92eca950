package bootstrap

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"csv_stream_backend/config"
	"csv_stream_backend/middleware"
	"csv_stream_backend/routes"
)

const readTimeout = 10 * time.Minute

// NewFiberApp builds the gateway HTTP surface.
func NewFiberApp(cfg *config.Config, h *Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "csv-stream-gateway",
		BodyLimit:             bodyLimit(cfg.MaxUploadSize),
		ReadTimeout:           readTimeout,
		DisableStartupMessage: true,
	})
	app.Use(middleware.Logger(cfg.AppEnv))
	app.Use(middleware.CORS(cfg))
	app.Use(middleware.APIKey(cfg))

	routes.RegisterJobRoutes(app, h.JobHandler)
	routes.SetupWebSocketRoutes(app, h.WSHandler)
	return app
}

// bodyLimit leaves headroom for the multipart envelope around the file.
func bodyLimit(maxUpload int64) int {
	const envelope = 1 << 20
	if maxUpload <= 0 {
		return fiber.DefaultBodyLimit
	}
	return int(maxUpload + envelope)
}
