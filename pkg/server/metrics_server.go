package server

import (
	"fmt"
	"net"

	"github.com/NeuralTrust/EdgeRouter/pkg/config"
	"github.com/NeuralTrust/EdgeRouter/pkg/infra/prometheus"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

const MetricsPath = "/metrics"

type MetricsServer struct {
	*BaseServer
}

func NewMetricsServer(cfg *config.Config, logger *logrus.Logger) *MetricsServer {
	s := &MetricsServer{BaseServer: NewBaseServer("metrics", cfg, logger)}

	s.Router.Use(recover.New())
	handler := fasthttpadaptor.NewFastHTTPHandler(
		promhttp.HandlerFor(prometheus.Registry(), promhttp.HandlerOpts{}),
	)
	s.Router.Get(MetricsPath, func(c *fiber.Ctx) error {
		handler(c.Context())
		return nil
	})
	return s
}

func (s *MetricsServer) Run() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Config.Server.MetricsPort))
	if err != nil {
		return fmt.Errorf("failed to listen on metrics port: %w", err)
	}
	return s.Serve(ln)
}
