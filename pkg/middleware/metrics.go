package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/NeuralTrust/EdgeRouter/pkg/common"
	"github.com/NeuralTrust/EdgeRouter/pkg/infra/prometheus"
	"github.com/NeuralTrust/EdgeRouter/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

const edgeRouteLabel = "edge"

type metricsMiddleware struct{}

func NewMetricsMiddleware() Middleware {
	return &metricsMiddleware{}
}

func (m *metricsMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start, ok := c.Locals(common.LatencyContextKey).(time.Time)
		if !ok {
			start = time.Now()
		}

		if prometheus.Config.EnableConnections {
			prometheus.EdgeConnections.WithLabelValues("active").Inc()
			defer prometheus.EdgeConnections.WithLabelValues("active").Dec()
		}

		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		}

		route := edgeRouteLabel
		if rule := utils.Route(c); rule != nil && prometheus.Config.EnablePerRoute {
			route = rule.Label()
		}
		prometheus.EdgeRequestTotal.WithLabelValues(route, methodLabel(c.Method()), statusClass(status)).Inc()

		if prometheus.Config.EnableLatency {
			prometheus.EdgeRequestLatency.WithLabelValues("total").
				Observe(float64(time.Since(start).Microseconds()) / 1000)
		}
		return err
	}
}

// methodLabel keeps the label set bounded: fasthttp accepts any method token.
func methodLabel(method string) string {
	switch method {
	case fiber.MethodGet, fiber.MethodHead, fiber.MethodPost, fiber.MethodPut, fiber.MethodPatch,
		fiber.MethodDelete, fiber.MethodConnect, fiber.MethodOptions, fiber.MethodTrace:
		return method
	default:
		return "OTHER"
	}
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "5xx"
	}
	return fmt.Sprintf("%dxx", code/100)
}
