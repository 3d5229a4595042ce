package http

import "github.com/gofiber/fiber/v2"

type healthHandler struct{}

// NewHealthHandler answers liveness checks without touching any upstream.
func NewHealthHandler() Handler {
	return &healthHandler{}
}

func (h *healthHandler) Handle(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}
