package routes

import (
	"github.com/gofiber/fiber/v2"

	"csv_stream_backend/handlers"
)

func RegisterJobRoutes(app *fiber.App, handler *handlers.JobHandler) {
	app.Get("/", handler.Health)
	app.Post("/upload", handler.Upload)
	app.Get("/status/:job_id", handler.Status)
	app.Get("/download/:filename", handler.Download)
}
