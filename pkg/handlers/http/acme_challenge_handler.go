package http

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type acmeChallengeHandler struct {
	logger *logrus.Logger
	dir    string
}

// NewAcmeChallengeHandler serves HTTP-01 tokens that certbot writes under
// <webroot>/.well-known/acme-challenge.
func NewAcmeChallengeHandler(logger *logrus.Logger, webroot string) Handler {
	return &acmeChallengeHandler{
		logger: logger,
		dir:    filepath.Join(webroot, ".well-known", "acme-challenge"),
	}
}

func (h *acmeChallengeHandler) Handle(c *fiber.Ctx) error {
	token := c.Params("*")
	if !validToken(token) {
		return c.SendStatus(fiber.StatusNotFound)
	}

	data, err := os.ReadFile(filepath.Join(h.dir, token)) // #nosec G304 -- token is [A-Za-z0-9_-]
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			h.logger.WithError(err).WithField("token", token).Error("failed to read acme challenge")
		}
		return c.SendStatus(fiber.StatusNotFound)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMETextPlain)
	return c.Status(fiber.StatusOK).Send(data)
}

// ACME tokens are base64url without padding.
func validToken(token string) bool {
	if token == "" || len(token) > 256 {
		return false
	}
	for i := 0; i < len(token); i++ {
		switch ch := token[i]; {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '-', ch == '_':
		default:
			return false
		}
	}
	return true
}
