package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postpilotapp/postpilot/internal/service"
)

type ChannelHandler struct {
	s service.ChannelService
}

func NewChannelHandler(s service.ChannelService) *ChannelHandler {
	return &ChannelHandler{s: s}
}

func (h *ChannelHandler) ListChannels(c *fiber.Ctx) error {
	refresh := c.QueryBool("refresh", false)

	channels, err := h.s.Channels(c.Context(), refresh)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"channels": channels})
}

func (h *ChannelHandler) PlatformMappings(c *fiber.Ctx) error {
	mappings, err := h.s.PlatformMappings(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(mappings)
}
