package server

import (
	"crypto/tls"
	"fmt"

	"github.com/NeuralTrust/EdgeRouter/pkg/config"
	"github.com/NeuralTrust/EdgeRouter/pkg/server/router"
	"github.com/sirupsen/logrus"
)

type (
	EdgeServerDI struct {
		Config    *config.Config
		Logger    *logrus.Logger
		TLSConfig *tls.Config
		Routers   []router.ServerRouter
	}
	// EdgeServer terminates TLS and dispatches to the upstreams.
	EdgeServer struct {
		*BaseServer
		tlsConfig *tls.Config
	}
)

func NewEdgeServer(di EdgeServerDI) *EdgeServer {
	return &EdgeServer{
		BaseServer: NewBaseServer("edge", di.Config, di.Logger).WithRouters(di.Routers...),
		tlsConfig:  di.TLSConfig,
	}
}

func (s *EdgeServer) Run() error {
	ln, err := tls.Listen("tcp", fmt.Sprintf(":%d", s.Config.Server.HTTPSPort), s.tlsConfig)
	if err != nil {
		return fmt.Errorf("failed to listen on https port: %w", err)
	}
	return s.Serve(ln)
}
