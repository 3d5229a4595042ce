package main

import (
	"context"
	"crypto/x509"
	"errors"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/NeuralTrust/EdgeRouter/pkg/app/upstream"
	"github.com/NeuralTrust/EdgeRouter/pkg/config"
	handlers "github.com/NeuralTrust/EdgeRouter/pkg/handlers/http"
	wsHandlers "github.com/NeuralTrust/EdgeRouter/pkg/handlers/websocket"
	"github.com/NeuralTrust/EdgeRouter/pkg/infra/httpx"
	infraLogger "github.com/NeuralTrust/EdgeRouter/pkg/infra/logger"
	"github.com/NeuralTrust/EdgeRouter/pkg/infra/prometheus"
	"github.com/NeuralTrust/EdgeRouter/pkg/infra/resolver"
	edgetls "github.com/NeuralTrust/EdgeRouter/pkg/infra/tls"
	"github.com/NeuralTrust/EdgeRouter/pkg/middleware"
	"github.com/NeuralTrust/EdgeRouter/pkg/server"
	"github.com/NeuralTrust/EdgeRouter/pkg/server/router"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Println("no .env file found, using system environment variables")
	}

	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, closeLogger, err := infraLogger.NewLogger(infraLogger.Options{
		Level: cfg.Log.Level,
		File:  cfg.Log.File,
	})
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer closeLogger()

	if cfg.Metrics.Enabled {
		prometheus.Initialize(prometheus.MetricsConfig{
			EnableLatency:         cfg.Metrics.EnableLatency,
			EnableUpstreamLatency: cfg.Metrics.EnableUpstream,
			EnableConnections:     cfg.Metrics.EnableConnections,
			EnablePerRoute:        cfg.Metrics.EnablePerRoute,
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// upstream addresses
	lookup, err := newLookup(cfg)
	if err != nil {
		logger.Fatalf("failed to build resolver: %v", err)
	}
	addresses := resolver.NewCache(lookup, cfg.Upstreams, logger,
		resolver.WithRefreshInterval(cfg.Resolver.RefreshInterval),
		resolver.WithLookupTimeout(cfg.Resolver.LookupTimeout),
	)
	if err := addresses.Refresh(ctx); err != nil {
		logger.WithError(err).Warn("initial upstream resolution incomplete, requests fail with 502 until it succeeds")
	}
	go addresses.Run(ctx)

	table, err := cfg.RouteTable()
	if err != nil {
		logger.Fatalf("invalid route table: %v", err)
	}

	upstreamFinder := upstream.NewFinder(cfg.Upstreams, addresses)

	clients := make(map[string]httpx.Doer, len(cfg.Upstreams))
	rootCAs := make(map[string]*x509.CertPool, len(cfg.Upstreams))
	for _, target := range cfg.Upstreams {
		pool, err := httpx.LoadCertPool(target.CAFile)
		if err != nil {
			logger.Fatalf("upstream %s: %v", target.Name, err)
		}
		rootCAs[target.Name] = pool
		clients[target.Name] = httpx.NewUpstreamClient(
			httpx.WithConnectTimeout(cfg.Proxy.ConnectTimeout),
			httpx.WithSendTimeout(cfg.Proxy.SendTimeout),
			httpx.WithReceiveTimeout(cfg.Proxy.ReceiveTimeout),
			httpx.WithMaxResponseBodySize(cfg.Proxy.MaxResponseBodySize),
			httpx.WithInsecureSkipVerify(target.InsecureSkipVerify),
			httpx.WithServerName(target.TLSServerName()),
			httpx.WithRootCAs(pool),
		)
	}

	var breakers *httpx.BreakerSet
	if cfg.Proxy.Breaker.Enabled {
		breakers = httpx.NewBreakerSet(cfg.UpstreamNames(), cfg.Proxy.Breaker.OpenTimeout, cfg.Proxy.Breaker.MaxFailures)
	}

	publicPort := cfg.Server.PublicHTTPSPort

	websocketHandler := wsHandlers.NewWebsocketHandler(logger, upstreamFinder, wsHandlers.Options{
		HandshakeTimeout: cfg.WebSocket.HandshakeTimeout,
		PingPeriod:       cfg.WebSocket.PingPeriod,
		PongWait:         cfg.WebSocket.PongWait,
		ReadBufferSize:   cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:  cfg.WebSocket.WriteBufferSize,
		MaxConnections:   cfg.WebSocket.MaxConnections,
		Proto:            "https",
		Port:             publicPort,
		RootCAs:          rootCAs,
	})

	//middleware
	middlewareTransport := &middleware.Transport{
		PanicRecoverMiddleware:  middleware.NewPanicRecoverMiddleware(logger),
		SensitivePathMiddleware: middleware.NewSensitivePathMiddleware(),
		RequestIDMiddleware:     middleware.NewRequestIDMiddleware(),
		AccessLogMiddleware:     middleware.NewAccessLogMiddleware(logger),
		SecurityMiddleware:      middleware.NewSecurityMiddleware(cfg.Server.HSTSMaxAge, cfg.Server.FrameOptions),
		MetricsMiddleware:       middleware.NewMetricsMiddleware(),
		RouteMiddleware:         middleware.NewRouteMiddleware(logger, table),
		CORSMiddleware: middleware.NewCORSMiddleware(middleware.CORSOptions{
			AllowOrigins:     cfg.CORS.AllowOrigins,
			AllowMethods:     cfg.CORS.AllowMethods,
			AllowHeaders:     cfg.CORS.AllowHeaders,
			ExposeHeaders:    cfg.CORS.ExposeHeaders,
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           cfg.CORS.MaxAge,
		}),
		WebsocketMiddleware: middleware.NewWebsocketMiddleware(websocketHandler),
	}

	// Handler Transport
	handlerTransport := handlers.HandlerTransport{
		ForwardedHandler: handlers.NewForwardedHandler(handlers.ForwardedHandlerDeps{
			Logger:         logger,
			UpstreamFinder: upstreamFinder,
			Client:         clients[cfg.Upstreams[0].Name],
			Clients:        clients,
			Breakers:       breakers,
			Proto:          "https",
			Port:           publicPort,
			WriteTimeout:   cfg.Server.WriteTimeout,
		}),
		HealthHandler:        handlers.NewHealthHandler(),
		GetVersionHandler:    handlers.NewGetVersionHandler(),
		AcmeChallengeHandler: handlers.NewAcmeChallengeHandler(logger, cfg.ACME.Webroot),
		RedirectHandler:      handlers.NewRedirectHandler(publicPort),
	}

	certStore, err := edgetls.NewCertStore(cfg.TLS.CertFile, cfg.TLS.KeyFile)
	if err != nil {
		logger.Fatalf("failed to load server certificate: %v", err)
	}
	tlsConfig := edgetls.BuildServerTLSConfig(certStore, edgetls.ServerOptions{
		MinVersion: cfg.TLS.MinVersion,
		MaxVersion: cfg.TLS.MaxVersion,
	})

	servers := []server.Server{
		server.NewEdgeServer(server.EdgeServerDI{
			Config:    cfg,
			Logger:    logger,
			TLSConfig: tlsConfig,
			Routers:   []router.ServerRouter{router.NewEdgeRouter(middlewareTransport, handlerTransport)},
		}),
		server.NewRedirectServer(server.RedirectServerDI{
			Config:  cfg,
			Logger:  logger,
			Routers: []router.ServerRouter{router.NewRedirectRouter(middlewareTransport, handlerTransport)},
		}),
	}
	if cfg.Metrics.Enabled {
		servers = append(servers, server.NewMetricsServer(cfg, logger))
	}

	failed := make(chan error, len(servers))
	for _, srv := range servers {
		go func(srv server.Server) {
			if err := srv.Run(); err != nil && !errors.Is(err, net.ErrClosed) {
				failed <- err
			}
		}(srv)
	}

	if err := writePIDFile(cfg.Server.PIDFile); err != nil {
		logger.WithError(err).Warn("failed to write pid file, certificate renewal cannot signal this process")
	}
	defer removePIDFile(cfg.Server.PIDFile, logger)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	for running := true; running; {
		select {
		case err := <-failed:
			logger.WithError(err).Error("server failed")
			running = false
		case sig := <-signals:
			if sig == syscall.SIGHUP {
				if err := certStore.Reload(); err != nil {
					logger.WithError(err).Error("certificate reload failed, keeping the current certificate")
					continue
				}
				logger.Info("certificate reloaded")
				continue
			}
			logger.WithField("signal", sig.String()).Info("shutting down servers")
			running = false
		}
	}

	cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(); err != nil {
			logger.WithError(err).Error("error shutting down server")
		}
	}
	logger.Info("servers stopped")
}

func newLookup(cfg *config.Config) (resolver.Lookup, error) {
	switch cfg.Resolver.Kind {
	case config.ResolverConsul:
		return resolver.NewConsulLookup(cfg.Resolver.ConsulAddr, cfg.Resolver.ConsulTag)
	default:
		return resolver.NewDNSLookup(net.DefaultResolver), nil
	}
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644)
}

func removePIDFile(path string, logger *logrus.Logger) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.WithError(err).Warnf("failed to remove pid file %s", path)
	}
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "./config"
}
