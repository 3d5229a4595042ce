package http

import "github.com/gofiber/fiber/v2"

type Handler interface {
	Handle(ctx *fiber.Ctx) error
}

type HandlerTransport struct {
	// Edge
	ForwardedHandler     Handler
	HealthHandler        Handler
	GetVersionHandler    Handler
	AcmeChallengeHandler Handler

	// Plaintext listener
	RedirectHandler Handler
}
