package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/postpilotapp/postpilot/internal/models"
	"github.com/postpilotapp/postpilot/internal/publisher"
	"github.com/postpilotapp/postpilot/internal/service"
	"github.com/postpilotapp/postpilot/internal/transfer"
)

type SettingsHandler struct {
	s   service.SettingsService
	pub *publisher.Client
}

func NewSettingsHandler(s service.SettingsService, pub *publisher.Client) *SettingsHandler {
	return &SettingsHandler{s: s, pub: pub}
}

func (h *SettingsHandler) GetSettings(c *fiber.Ctx) error {
	settings, err := h.s.GetSettings(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	// Never echo encrypted key material back to the client.
	settings.PublisherAPIKeyEnc = ""
	settings.RewriteAPIKeyEnc = ""
	return c.JSON(settings)
}

func (h *SettingsHandler) UpdateSettings(c *fiber.Ctx) error {
	var req transfer.SettingsUpdate
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	settings, err := h.s.UpdateSettings(c.Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	settings.PublisherAPIKeyEnc = ""
	settings.RewriteAPIKeyEnc = ""
	return c.JSON(settings)
}

// TestConnection checks the publishing API key by listing channels.
func (h *SettingsHandler) TestConnection(c *fiber.Ctx) error {
	count, err := h.pub.TestConnection(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"channels": count})
}

func (h *SettingsHandler) ListPresets(c *fiber.Ctx) error {
	presets, err := h.s.ListPresets(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"presets": presets})
}

func (h *SettingsHandler) SavePreset(c *fiber.Ctx) error {
	var preset models.Preset
	if err := c.BodyParser(&preset); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to parse json",
		})
	}

	if err := h.s.SavePreset(c.Context(), &preset); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (h *SettingsHandler) DeletePreset(c *fiber.Ctx) error {
	if err := h.s.DeletePreset(c.Context(), c.Params("name")); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusOK)
}
