package websocket

import "github.com/gofiber/fiber/v2"

// Handler upgrades a client request and bridges it to the upstream.
type Handler interface {
	Handle(c *fiber.Ctx) error
}
