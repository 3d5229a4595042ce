package middleware

import (
	wsHandlers "github.com/NeuralTrust/EdgeRouter/pkg/handlers/websocket"
	"github.com/NeuralTrust/EdgeRouter/pkg/utils"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type websocketMiddleware struct {
	handler wsHandlers.Handler
}

// NewWebsocketMiddleware hands upgrade requests on websocket-enabled routes
// to the pass-through handler; everything else continues down the chain.
func NewWebsocketMiddleware(handler wsHandlers.Handler) Middleware {
	return &websocketMiddleware{handler: handler}
}

func (m *websocketMiddleware) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rule := utils.Route(c)
		if rule == nil || !rule.Websocket || !websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return m.handler.Handle(c)
	}
}
