package handlers

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/postpilotapp/postpilot/internal/rewrite"
	"github.com/postpilotapp/postpilot/internal/transfer"
)

type RewriteHandler struct {
	queue    *rewrite.Queue
	validate *validator.Validate
}

func NewRewriteHandler(queue *rewrite.Queue) *RewriteHandler {
	return &RewriteHandler{queue: queue, validate: validator.New()}
}

// StartRewrite kicks off a background run. Only one run at a time; a second
// start while one is in flight is rejected with 409.
func (h *RewriteHandler) StartRewrite(c *fiber.Ctx) error {
	var req transfer.RewriteQueueRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}
	if err := h.validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	started := h.queue.Start(req.PostIDs, req.Target, req.Instruction, req.UseMedia, func(summary rewrite.Summary) {
		slog.Info("rewrite run finished",
			"total", summary.Total,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"skipped", summary.Skipped,
			"aborted", summary.Aborted)
	})
	if !started {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "a rewrite run is already in progress",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"queued": len(req.PostIDs),
	})
}

func (h *RewriteHandler) StopRewrite(c *fiber.Ctx) error {
	if !h.queue.Stop() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no rewrite run in progress",
		})
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *RewriteHandler) RewriteStatus(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"running": h.queue.Running(),
	})
}
