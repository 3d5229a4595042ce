package router

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

var ErrMissingDependency = errors.New("router dependency is not configured")

type ServerRouter interface {
	BuildRoutes(router *fiber.App) error
}
