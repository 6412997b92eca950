package routes

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"csv_stream_backend/handlers"
)

func SetupWebSocketRoutes(app *fiber.App, wsHandler *handlers.WSHandler) {
	ws := app.Group("/ws")

	ws.Use("/jobs/:job_id", wsHandler.WebSocketUpgrade)
	ws.Get("/jobs/:job_id", websocket.New(wsHandler.HandleJobEvents))
}
