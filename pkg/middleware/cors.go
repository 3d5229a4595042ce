package middleware

import (
	"strconv"
	"strings"

	"github.com/NeuralTrust/EdgeRouter/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type CORSOptions struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

type corsMiddleware struct {
	opts          CORSOptions
	allowMethods  string
	allowHeaders  string
	exposeHeaders string
	maxAge        string
}

// NewCORSMiddleware applies the policy to API-scoped routes only. Preflights
// are answered here and never reach the upstream.
func NewCORSMiddleware(opts CORSOptions) Middleware {
	m := &corsMiddleware{
		opts:          opts,
		allowMethods:  strings.Join(opts.AllowMethods, ", "),
		allowHeaders:  strings.Join(opts.AllowHeaders, ", "),
		exposeHeaders: strings.Join(opts.ExposeHeaders, ", "),
	}
	if opts.MaxAge > 0 {
		m.maxAge = strconv.Itoa(opts.MaxAge)
	}
	return m
}

func (m *corsMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rule := utils.Route(c)
		if rule == nil || !rule.CORSScoped() {
			return c.Next()
		}

		origin := m.allowOrigin(c.Get(fiber.HeaderOrigin))

		if c.Method() == fiber.MethodOptions {
			m.setOriginHeaders(c, origin)
			c.Set(fiber.HeaderAccessControlAllowMethods, m.allowMethods)
			if m.allowHeaders != "" {
				c.Set(fiber.HeaderAccessControlAllowHeaders, m.allowHeaders)
			} else if reqHeaders := c.Get(fiber.HeaderAccessControlRequestHeaders); reqHeaders != "" {
				c.Set(fiber.HeaderAccessControlAllowHeaders, reqHeaders)
			}
			if m.maxAge != "" {
				c.Set(fiber.HeaderAccessControlMaxAge, m.maxAge)
			}
			return c.SendStatus(fiber.StatusNoContent)
		}

		err := c.Next()

		// replaces whatever the upstream sent so there is exactly one value
		m.setOriginHeaders(c, origin)
		if m.exposeHeaders != "" {
			c.Set(fiber.HeaderAccessControlExposeHeaders, m.exposeHeaders)
		}
		return err
	}
}

func (m *corsMiddleware) setOriginHeaders(c *fiber.Ctx, origin string) {
	c.Set(fiber.HeaderAccessControlAllowOrigin, origin)
	if m.opts.AllowCredentials {
		c.Set(fiber.HeaderAccessControlAllowCredentials, "true")
	}
	c.Vary(fiber.HeaderOrigin)
}

// allowOrigin echoes a listed origin and otherwise answers with the first
// configured one, which a browser will reject for a foreign origin.
func (m *corsMiddleware) allowOrigin(requestOrigin string) string {
	for _, o := range m.opts.AllowOrigins {
		if o == "*" {
			if requestOrigin != "" && m.opts.AllowCredentials {
				return requestOrigin
			}
			return "*"
		}
		if requestOrigin != "" && strings.EqualFold(o, requestOrigin) {
			return requestOrigin
		}
	}
	if len(m.opts.AllowOrigins) == 0 {
		return ""
	}
	return m.opts.AllowOrigins[0]
}
