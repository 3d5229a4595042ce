package router

import (
	"fmt"

	"github.com/NeuralTrust/EdgeRouter/pkg/common"
	handlers "github.com/NeuralTrust/EdgeRouter/pkg/handlers/http"
	"github.com/NeuralTrust/EdgeRouter/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

type redirectRouter struct {
	middlewareTransport *middleware.Transport
	handlerTransport    handlers.HandlerTransport
}

// NewRedirectRouter builds the plaintext listener: only ACME challenges are
// served, everything else is redirected before any other processing.
func NewRedirectRouter(
	middlewareTransport *middleware.Transport,
	handlerTransport handlers.HandlerTransport,
) ServerRouter {
	return &redirectRouter{
		middlewareTransport: middlewareTransport,
		handlerTransport:    handlerTransport,
	}
}

func (r *redirectRouter) BuildRoutes(router *fiber.App) error {
	m := r.middlewareTransport
	h := r.handlerTransport

	if h.RedirectHandler == nil {
		return fmt.Errorf("redirect router: %w", ErrMissingDependency)
	}

	use(router, m.PanicRecoverMiddleware, m.RequestIDMiddleware, m.AccessLogMiddleware)

	if h.AcmeChallengeHandler != nil {
		router.Get(common.AcmeChallengePrefix+"*", h.AcmeChallengeHandler.Handle)
	}
	router.Use(h.RedirectHandler.Handle)
	return nil
}
