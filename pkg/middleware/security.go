package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type securityMiddleware struct {
	hsts         string
	frameOptions string
}

// NewSecurityMiddleware adds the HTTPS response headers. A non-positive
// hstsMaxAge disables Strict-Transport-Security.
func NewSecurityMiddleware(hstsMaxAge int, frameOptions string) Middleware {
	m := &securityMiddleware{frameOptions: frameOptions}
	if hstsMaxAge > 0 {
		m.hsts = "max-age=" + strconv.Itoa(hstsMaxAge) + "; includeSubDomains"
	}
	return m
}

func (m *securityMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if m.hsts != "" {
			c.Set(fiber.HeaderStrictTransportSecurity, m.hsts)
		}
		c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
		if m.frameOptions != "" {
			c.Set(fiber.HeaderXFrameOptions, m.frameOptions)
		}
		return err
	}
}
