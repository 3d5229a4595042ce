package middleware

import (
	"errors"
	"time"

	"github.com/NeuralTrust/EdgeRouter/pkg/common"
	"github.com/NeuralTrust/EdgeRouter/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type accessLogMiddleware struct {
	logger *logrus.Logger
}

func NewAccessLogMiddleware(logger *logrus.Logger) Middleware {
	return &accessLogMiddleware{logger: logger}
}

func (m *accessLogMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start, ok := c.Locals(common.LatencyContextKey).(time.Time)
		if !ok {
			start = time.Now()
		}

		err := c.Next()

		if skip, _ := c.Locals(common.SkipAccessLogKey).(bool); skip { //nolint:errcheck
			return err
		}

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}

		ua := utils.ParseUserAgent(c.Get(fiber.HeaderUserAgent), c.Get(fiber.HeaderAcceptLanguage))
		fields := logrus.Fields{
			"request_id": utils.RequestID(c),
			"method":     c.Method(),
			"path":       string(c.Request().URI().PathOriginal()),
			"host":       string(c.Request().Header.Host()),
			"status":     status,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.IP(),
			"device":     ua.Device,
			"browser":    ua.Browser,
			"os":         ua.OS,
			"bot":        ua.Bot,
		}
		if rule := utils.Route(c); rule != nil {
			fields["route"] = rule.Label()
			fields["upstream"] = string(rule.Upstream)
		}

		entry := m.logger.WithFields(fields)
		switch {
		case status >= fiber.StatusInternalServerError:
			entry.Warn("request completed")
		default:
			entry.Info("request completed")
		}
		return err
	}
}
