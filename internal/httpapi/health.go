package httpapi

import (
	"github.com/gofiber/fiber/v2"
)

// Health handles GET /health, a liveness probe with no dependency checks
// (supplemented feature: the distilled spec names no health endpoint, but
// every long-running service in the pack carries one).
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// Version handles GET /version.
func (h *Handler) Version(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"version": h.Version})
}
