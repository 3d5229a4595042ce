package utils

import (
	"github.com/NeuralTrust/EdgeRouter/pkg/app/routing"
	"github.com/NeuralTrust/EdgeRouter/pkg/common"
	"github.com/gofiber/fiber/v2"
)

func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(common.RequestIDContextKey).(string) //nolint:errcheck
	return id
}

// Route returns the rule selected for this request, nil before selection.
func Route(c *fiber.Ctx) *routing.Rule {
	rule, _ := c.Locals(common.RouteContextKey).(*routing.Rule) //nolint:errcheck
	return rule
}

func ForwardPath(c *fiber.Ctx) string {
	path, ok := c.Locals(common.ForwardPathContextKey).(string)
	if !ok || path == "" {
		return c.Path()
	}
	return path
}
