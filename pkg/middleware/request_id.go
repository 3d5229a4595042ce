package middleware

import (
	"time"

	"github.com/NeuralTrust/EdgeRouter/pkg/common"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type requestIDMiddleware struct{}

// NewRequestIDMiddleware keeps an incoming X-Request-ID unchanged or mints a
// UUID; the id is stored in locals and echoed on the response.
func NewRequestIDMiddleware() Middleware {
	return &requestIDMiddleware{}
}

func (m *requestIDMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(common.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Locals(common.RequestIDContextKey, id)
		c.Locals(common.LatencyContextKey, time.Now())
		c.Set(common.HeaderRequestID, id)

		err := c.Next()

		// upstream headers were copied in on the way back
		c.Set(common.HeaderRequestID, id)
		return err
	}
}
