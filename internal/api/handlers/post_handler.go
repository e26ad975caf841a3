package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postpilotapp/postpilot/internal/service"
	"github.com/postpilotapp/postpilot/internal/transfer"
)

type PostHandler struct {
	s service.PostService
}

func NewPostHandler(s service.PostService) *PostHandler {
	return &PostHandler{s: s}
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	category := c.Query("category", "all")
	return c.JSON(fiber.Map{
		"posts": h.s.List(category),
	})
}

func (h *PostHandler) ListCategories(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"categories": h.s.Categories(),
		"counters":   h.s.Counters(),
	})
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var req transfer.PostCreation
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	post, err := h.s.Create(c.Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) DeletePosts(c *fiber.Ctx) error {
	var req struct {
		PostIDs []string `json:"post_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	removed, err := h.s.Remove(c.Context(), req.PostIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"removed": removed})
}

func (h *PostHandler) ClearCategory(c *fiber.Ctx) error {
	category := c.Params("category")
	if err := h.s.ClearCategory(c.Context(), category); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *PostHandler) UpdateOverride(c *fiber.Ctx) error {
	postID := c.Params("id")

	var req transfer.OverrideUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	if err := h.s.UpdateOverride(c.Context(), postID, req); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
