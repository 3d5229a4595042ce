package middleware

import "github.com/gofiber/fiber/v2"

type Middleware interface {
	Middleware() fiber.Handler
}

// Transport carries the edge chain in the order it is installed.
type Transport struct {
	PanicRecoverMiddleware  Middleware
	SensitivePathMiddleware Middleware
	RequestIDMiddleware     Middleware
	AccessLogMiddleware     Middleware
	SecurityMiddleware      Middleware
	MetricsMiddleware       Middleware
	RouteMiddleware         Middleware
	CORSMiddleware          Middleware
	WebsocketMiddleware     Middleware
}
