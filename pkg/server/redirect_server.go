package server

import (
	"fmt"
	"net"

	"github.com/NeuralTrust/EdgeRouter/pkg/config"
	"github.com/NeuralTrust/EdgeRouter/pkg/server/router"
	"github.com/sirupsen/logrus"
)

type (
	RedirectServerDI struct {
		Config  *config.Config
		Logger  *logrus.Logger
		Routers []router.ServerRouter
	}
	// RedirectServer is the plaintext listener: ACME challenges and a
	// permanent redirect to HTTPS for everything else.
	RedirectServer struct {
		*BaseServer
	}
)

func NewRedirectServer(di RedirectServerDI) *RedirectServer {
	return &RedirectServer{
		BaseServer: NewBaseServer("redirect", di.Config, di.Logger).WithRouters(di.Routers...),
	}
}

func (s *RedirectServer) Run() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.Config.Server.HTTPPort))
	if err != nil {
		return fmt.Errorf("failed to listen on http port: %w", err)
	}
	return s.Serve(ln)
}
