package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/postpilotapp/postpilot/internal/dispatch"
	"github.com/postpilotapp/postpilot/internal/queue"
	"github.com/postpilotapp/postpilot/internal/transfer"
)

type ScheduleHandler struct {
	dispatcher  *dispatch.Dispatcher
	asynqClient *asynq.Client
}

func NewScheduleHandler(dispatcher *dispatch.Dispatcher, asynqClient *asynq.Client) *ScheduleHandler {
	return &ScheduleHandler{dispatcher: dispatcher, asynqClient: asynqClient}
}

// SchedulePosts queues a dispatch run. The request is validated here, before
// it is queued, so a bad request fails the HTTP call instead of dying
// silently in the worker; the worker executes accepted runs after the
// requested delay.
func (h *ScheduleHandler) SchedulePosts(c *fiber.Ctx) error {
	var req transfer.DispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	if err := h.dispatcher.ValidateRequest(req); err != nil {
		return respondError(c, err)
	}

	runID := uuid.NewString()
	delay := time.Duration(req.DelaySeconds) * time.Second

	err := queue.EnqueueDispatchRun(h.asynqClient, queue.DispatchPayload{
		RunID:   runID,
		Request: req,
	}, delay)
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run_id": runID,
		"queued": len(req.PostIDs),
	})
}

// PublishNow runs the dispatch inline with the start time pinned just far
// enough ahead for the publisher to accept it.
func (h *ScheduleHandler) PublishNow(c *fiber.Ctx) error {
	var req transfer.DispatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	req.StartTime = time.Now().Add(30 * time.Second).UTC().Format(time.RFC3339)
	if req.IntervalType == "" {
		req.IntervalType = dispatch.IntervalFixed
	}
	if req.IntervalMinutes <= 0 {
		req.IntervalMinutes = 1
	}

	result, err := h.dispatcher.Run(c.Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(result)
}
