package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postpilotapp/postpilot/internal/service"
)

type LinksHandler struct {
	s service.LinksService
}

func NewLinksHandler(s service.LinksService) *LinksHandler {
	return &LinksHandler{s: s}
}

func (h *LinksHandler) ListLinks(c *fiber.Ctx) error {
	links, err := h.s.List(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"links": links})
}

func (h *LinksHandler) AddLink(c *fiber.Ctx) error {
	var req struct {
		Link string `json:"link"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	if err := h.s.Add(c.Context(), req.Link); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *LinksHandler) RemoveLink(c *fiber.Ctx) error {
	var req struct {
		Link string `json:"link"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	if err := h.s.Remove(c.Context(), req.Link); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
