package router

import (
	"fmt"

	"github.com/NeuralTrust/EdgeRouter/pkg/common"
	handlers "github.com/NeuralTrust/EdgeRouter/pkg/handlers/http"
	"github.com/NeuralTrust/EdgeRouter/pkg/middleware"
	"github.com/gofiber/fiber/v2"
)

type edgeRouter struct {
	middlewareTransport *middleware.Transport
	handlerTransport    handlers.HandlerTransport
}

func NewEdgeRouter(
	middlewareTransport *middleware.Transport,
	handlerTransport handlers.HandlerTransport,
) ServerRouter {
	return &edgeRouter{
		middlewareTransport: middlewareTransport,
		handlerTransport:    handlerTransport,
	}
}

// BuildRoutes installs the chain in request order. Health, version and ACME
// answer before rule selection and never reach an upstream.
func (r *edgeRouter) BuildRoutes(router *fiber.App) error {
	m := r.middlewareTransport
	h := r.handlerTransport

	if m.RouteMiddleware == nil || h.ForwardedHandler == nil {
		return fmt.Errorf("edge router: %w", ErrMissingDependency)
	}

	use(router,
		m.PanicRecoverMiddleware,
		m.SensitivePathMiddleware,
		m.RequestIDMiddleware,
		m.AccessLogMiddleware,
		m.SecurityMiddleware,
		m.MetricsMiddleware,
	)

	if h.HealthHandler != nil {
		router.All(common.HealthPath, h.HealthHandler.Handle)
	}
	if h.GetVersionHandler != nil {
		router.Get(common.VersionPath, h.GetVersionHandler.Handle)
	}
	if h.AcmeChallengeHandler != nil {
		router.Get(common.AcmeChallengePrefix+"*", h.AcmeChallengeHandler.Handle)
	}

	use(router,
		m.RouteMiddleware,
		m.CORSMiddleware,
		m.WebsocketMiddleware,
	)

	router.Use(h.ForwardedHandler.Handle)
	return nil
}

func use(router *fiber.App, chain ...middleware.Middleware) {
	for _, mw := range chain {
		if mw != nil {
			router.Use(mw.Middleware())
		}
	}
}
