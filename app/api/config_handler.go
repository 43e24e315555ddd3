package api

import (
	"github.com/gofiber/fiber/v2"

	"mwanga/types"
)

// ConfigHandler exposes the non-secret answer settings.
type ConfigHandler struct {
	settings types.ResolverSettings
}

func NewConfigHandler(settings types.ResolverSettings) *ConfigHandler {
	return &ConfigHandler{
		settings: settings,
	}
}

func (h *ConfigHandler) HandleGetConfig(c *fiber.Ctx) error {
	return c.JSON(h.settings)
}
