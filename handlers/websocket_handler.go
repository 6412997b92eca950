package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"csv_stream_backend/models"
	"csv_stream_backend/pkg/errs"
	"csv_stream_backend/pkg/logging"
	"csv_stream_backend/platform/events"
	"csv_stream_backend/services"
)

type WSHandler struct {
	eventPublisher events.Publisher
	jobs           *services.JobService
}

func NewWSHandler(eventPublisher events.Publisher, jobs *services.JobService) *WSHandler {
	return &WSHandler{eventPublisher: eventPublisher, jobs: jobs}
}

func (h *WSHandler) WebSocketUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Not a websocket request"})
}

// HandleJobEvents sends the job's current state, then relays its events
// until a terminal one is written or the client goes away.
func (h *WSHandler) HandleJobEvents(c *websocket.Conn) {
	jobID := c.Params("job_id")
	logging.Logger.Info("WebSocket connected", "job_id", jobID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// subscribe before reading the snapshot so no transition is missed
	eventChan, err := h.eventPublisher.SubscribeJobEvents(ctx, jobID)
	if err != nil {
		logging.Logger.Error("Failed to subscribe to events", "error", err)
		_ = c.WriteJSON(fiber.Map{"error": "Failed to subscribe"})
		return
	}

	job, err := h.jobs.GetJob(ctx, jobID)
	if errors.Is(err, errs.ErrJobNotFound) {
		_ = c.WriteJSON(fiber.Map{"error": "Job not found", "job_id": jobID})
		return
	}
	if err != nil {
		logging.Logger.Error("fail GetJob", "job_id", jobID, "error", err)
		_ = c.WriteJSON(fiber.Map{"error": "Internal server error"})
		return
	}

	if err := c.WriteJSON(fiber.Map{
		"type":    "connected",
		"message": "WebSocket connected successfully",
		"job_id":  jobID,
	}); err != nil {
		return
	}
	snapshot := models.NewJobEvent(job)
	if err := c.WriteJSON(snapshot); err != nil || job.Status.Terminal() {
		return
	}

	// a read error means the client closed
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	for {
		select {
		case event, ok := <-eventChan:
			if !ok {
				return
			}
			if err := c.WriteJSON(event); err != nil {
				logging.Logger.Error("Failed to send WebSocket message", "error", err)
				return
			}
			if event.Status.Terminal() {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
