package http

import (
	"net"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
)

type redirectHandler struct {
	httpsPort int
}

// NewRedirectHandler sends plaintext clients to the same host and URI over
// HTTPS. httpsPort is the public port; 443 is left implicit.
func NewRedirectHandler(httpsPort int) Handler {
	return &redirectHandler{httpsPort: httpsPort}
}

func (h *redirectHandler) Handle(c *fiber.Ctx) error {
	host, ok := redirectHost(string(c.Request().Header.Host()))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid host"})
	}
	if h.httpsPort != 0 && h.httpsPort != 443 {
		host = net.JoinHostPort(strings.Trim(host, "[]"), strconv.Itoa(h.httpsPort))
	}
	location := "https://" + host + string(c.Request().RequestURI())
	return c.Redirect(location, fiber.StatusMovedPermanently)
}

// redirectHost strips any port from the Host header and rejects values that
// could not be a hostname.
func redirectHost(hostHeader string) (string, bool) {
	if hostHeader == "" {
		return "", false
	}
	host := hostHeader
	if h, _, err := net.SplitHostPort(hostHeader); err == nil {
		host = h
		if strings.Contains(host, ":") {
			host = "[" + host + "]"
		}
	}
	for i := 0; i < len(host); i++ {
		switch ch := host[i]; {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9',
			ch == '.', ch == '-', ch == ':', ch == '[', ch == ']', ch == '_':
		default:
			return "", false
		}
	}
	return host, true
}
