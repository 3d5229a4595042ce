package middleware

import (
	"net/url"
	"strings"

	"github.com/NeuralTrust/EdgeRouter/pkg/common"
	"github.com/gofiber/fiber/v2"
)

type sensitivePathMiddleware struct{}

// NewSensitivePathMiddleware answers scans for dotfiles and repository
// metadata with a bare 404. Nothing after it runs, so no access log line is
// written for them.
func NewSensitivePathMiddleware() Middleware {
	return &sensitivePathMiddleware{}
}

func (m *sensitivePathMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := string(c.Request().URI().PathOriginal())
		candidates := []string{c.Path(), raw}
		if decoded, err := url.PathUnescape(raw); err == nil && decoded != raw {
			candidates = append(candidates, decoded)
		}
		for _, p := range candidates {
			if IsSensitivePath(p) {
				c.Locals(common.SkipAccessLogKey, true)
				c.Status(fiber.StatusNotFound)
				return nil
			}
		}
		return c.Next()
	}
}

// IsSensitivePath reports whether path holds a dot-segment outside the ACME
// challenge prefix or ends in .env or .git.
func IsSensitivePath(path string) bool {
	if path == "" {
		return false
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}

	lower := strings.ToLower(strings.TrimRight(path, "/"))
	if strings.HasSuffix(lower, ".env") || strings.HasSuffix(lower, ".git") {
		return true
	}

	rest := path
	if strings.HasPrefix(rest, common.AcmeChallengePrefix) {
		rest = rest[len(common.AcmeChallengePrefix):]
	}
	for _, seg := range strings.Split(rest, "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}
