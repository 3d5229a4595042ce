package middleware

import (
	"github.com/NeuralTrust/EdgeRouter/pkg/app/routing"
	"github.com/NeuralTrust/EdgeRouter/pkg/common"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type routeMiddleware struct {
	logger *logrus.Logger
	table  *routing.Table
}

// NewRouteMiddleware selects the longest-prefix rule and the path to forward.
func NewRouteMiddleware(logger *logrus.Logger, table *routing.Table) Middleware {
	return &routeMiddleware{logger: logger, table: table}
}

func (m *routeMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rule, forwardPath, ok := m.table.Match(c.Path())
		if !ok {
			m.logger.WithField("path", c.Path()).Error("no route matched")
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
		}
		c.Locals(common.RouteContextKey, rule)
		c.Locals(common.ForwardPathContextKey, forwardPath)
		return c.Next()
	}
}
