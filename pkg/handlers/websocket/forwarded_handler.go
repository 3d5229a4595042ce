package websocket

import (
	"crypto/x509"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/NeuralTrust/EdgeRouter/pkg/app/forwarding"
	"github.com/NeuralTrust/EdgeRouter/pkg/app/upstream"
	domain "github.com/NeuralTrust/EdgeRouter/pkg/domain/errors"
	domainUpstream "github.com/NeuralTrust/EdgeRouter/pkg/domain/upstream"
	"github.com/NeuralTrust/EdgeRouter/pkg/infra/httpx"
	"github.com/NeuralTrust/EdgeRouter/pkg/infra/prometheus"
	infraWebsocket "github.com/NeuralTrust/EdgeRouter/pkg/infra/websocket"
	"github.com/NeuralTrust/EdgeRouter/pkg/utils"
	fastws "github.com/fasthttp/websocket"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	gorilla "github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	defaultPingPeriod = 30 * time.Second
	defaultPongWait   = 45 * time.Second
	writeWait         = 10 * time.Second
)

type Options struct {
	HandshakeTimeout time.Duration
	PingPeriod       time.Duration
	PongWait         time.Duration
	ReadBufferSize   int
	WriteBufferSize  int
	MaxConnections   int
	Proto            string
	Port             int
	// RootCAs by upstream name, for https upstreams with a private CA.
	RootCAs map[string]*x509.CertPool
}

type forwardedWebsocketHandler struct {
	logger         *logrus.Logger
	upstreamFinder upstream.Finder
	dialer         *gorilla.Dialer
	semaphore      *infraWebsocket.Semaphore
	opts           Options
}

func NewWebsocketHandler(logger *logrus.Logger, upstreamFinder upstream.Finder, opts Options) Handler {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = defaultPingPeriod
	}
	if opts.PongWait <= opts.PingPeriod {
		opts.PongWait = opts.PingPeriod + opts.PingPeriod/2
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 15 * time.Second
	}
	if opts.Proto == "" {
		opts.Proto = "https"
	}
	return &forwardedWebsocketHandler{
		logger:         logger,
		upstreamFinder: upstreamFinder,
		dialer: &gorilla.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
			ReadBufferSize:   opts.ReadBufferSize,
			WriteBufferSize:  opts.WriteBufferSize,
		},
		semaphore: infraWebsocket.NewSemaphore(opts.MaxConnections),
		opts:      opts,
	}
}

// Handle dials the upstream first so a failure is reported as a normal HTTP
// error, then upgrades the client and pipes frames both ways.
func (h *forwardedWebsocketHandler) Handle(c *fiber.Ctx) error {
	rule := utils.Route(c)
	if rule == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": http.StatusText(http.StatusNotFound)})
	}
	if !h.semaphore.Acquire() {
		h.logger.Warn("maximum websocket connections reached, rejecting connection")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "too many websocket connections"})
	}

	endpoint, err := h.upstreamFinder.Find(rule.Upstream)
	if err != nil {
		h.semaphore.Release()
		return h.handleErrorResponse(c, string(rule.Upstream), err)
	}

	target := endpoint.URL(utils.ForwardPath(c), true)
	if q := c.Request().URI().QueryString(); len(q) > 0 {
		target += "?" + string(q)
	}

	upstreamConn, resp, err := h.dialerFor(endpoint.Target).DialContext(c.Context(), target, h.dialHeader(c))
	if err != nil {
		h.semaphore.Release()
		if resp != nil {
			_ = resp.Body.Close()
			err = errors.Join(err, errors.New("upstream answered "+resp.Status))
		}
		return h.handleErrorResponse(c, endpoint.Target.Name, err)
	}

	cfg := websocket.Config{
		HandshakeTimeout: h.opts.HandshakeTimeout,
		ReadBufferSize:   h.opts.ReadBufferSize,
		WriteBufferSize:  h.opts.WriteBufferSize,
	}
	if proto := upstreamConn.Subprotocol(); proto != "" {
		cfg.Subprotocols = []string{proto}
	}

	// the hijack callback never runs if the 101 could not be written
	var started atomic.Bool
	abandon := time.AfterFunc(h.opts.HandshakeTimeout, func() {
		if started.CompareAndSwap(false, true) {
			_ = upstreamConn.Close()
			h.semaphore.Release()
		}
	})

	log := h.logger.WithFields(logrus.Fields{
		"request_id": utils.RequestID(c),
		"upstream":   endpoint.Target.Name,
		"target":     target,
	})

	err = websocket.New(func(conn *websocket.Conn) {
		if !started.CompareAndSwap(false, true) {
			_ = conn.Close()
			return
		}
		abandon.Stop()
		defer h.semaphore.Release()
		h.bridge(conn, upstreamConn, log)
	}, cfg)(c)
	if err != nil {
		if started.CompareAndSwap(false, true) {
			abandon.Stop()
			_ = upstreamConn.Close()
			h.semaphore.Release()
		}
		return err
	}
	return nil
}

// dialerFor verifies an https upstream against its configured host, not the
// resolved IP the dial goes to.
func (h *forwardedWebsocketHandler) dialerFor(target domainUpstream.Target) *gorilla.Dialer {
	if target.SchemeOrDefault() != "https" {
		return h.dialer
	}
	d := *h.dialer
	d.TLSClientConfig = httpx.ClientTLSConfig(target.TLSServerName(), h.opts.RootCAs[target.Name], target.InsecureSkipVerify)
	return &d
}

func (h *forwardedWebsocketHandler) dialHeader(c *fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(k, v []byte) {
		key := string(k)
		lower := strings.ToLower(key)
		if strings.HasPrefix(lower, "sec-websocket-") && lower != "sec-websocket-protocol" {
			return
		}
		if forwarding.SkipRequestHeader(key) {
			return
		}
		header.Add(key, string(v))
	})
	header.Set("Host", string(c.Request().Header.Host()))
	forwarding.FromCtx(c, h.opts.Proto, h.opts.Port).Visit(header.Set)
	return header
}

// messageConn is the subset shared by the fiber and gorilla connections.
type messageConn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

func (h *forwardedWebsocketHandler) bridge(client *websocket.Conn, upstreamConn *gorilla.Conn, log *logrus.Entry) {
	defer upstreamConn.Close()
	defer client.Close()

	h.keepAlive(client)
	h.keepAlive(upstreamConn)

	done := make(chan struct{})
	var once sync.Once
	stop := func() { once.Do(func() { close(done) }) }

	go h.ping(client, done)
	go h.ping(upstreamConn, done)

	errc := make(chan error, 2)
	go func() { errc <- pipe(upstreamConn, client) }()
	go func() { errc <- pipe(client, upstreamConn) }()

	err := <-errc
	stop()
	if err != nil && !isNormalClose(err) {
		log.WithError(err).Debug("websocket bridge closed")
	}
}

func (h *forwardedWebsocketHandler) keepAlive(conn messageConn) {
	_ = conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})
}

func (h *forwardedWebsocketHandler) ping(conn messageConn, done <-chan struct{}) {
	ticker := time.NewTicker(h.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(gorilla.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// pipe copies frames from src to dst until src fails, forwarding a close
// frame so the other side shuts down too.
func pipe(dst, src messageConn) error {
	for {
		messageType, data, err := src.ReadMessage()
		if err != nil {
			code, text := gorilla.CloseNormalClosure, ""
			var closeErr *gorilla.CloseError
			if errors.As(err, &closeErr) {
				code, text = closeErr.Code, closeErr.Text
			}
			var fastCloseErr *fastws.CloseError
			if errors.As(err, &fastCloseErr) {
				code, text = fastCloseErr.Code, fastCloseErr.Text
			}
			if code == gorilla.CloseNoStatusReceived || code == gorilla.CloseAbnormalClosure {
				code = gorilla.CloseNormalClosure
			}
			_ = dst.WriteControl(gorilla.CloseMessage, gorilla.FormatCloseMessage(code, text), time.Now().Add(writeWait))
			return err
		}
		if err := dst.WriteMessage(messageType, data); err != nil {
			return err
		}
	}
}

func isNormalClose(err error) bool {
	if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
		return true
	}
	return fastws.IsCloseError(err, fastws.CloseNormalClosure, fastws.CloseGoingAway)
}

func (h *forwardedWebsocketHandler) handleErrorResponse(c *fiber.Ctx, upstreamName string, err error) error {
	var edgeErr *domain.EdgeError
	if !errors.As(err, &edgeErr) {
		edgeErr = domain.NewUpstreamError(upstreamName, err)
	}
	prometheus.EdgeUpstreamErrors.WithLabelValues(upstreamName, edgeErr.Kind.String()).Inc()
	h.logger.WithFields(logrus.Fields{
		"request_id": utils.RequestID(c),
		"upstream":   upstreamName,
	}).WithError(err).Error("failed to open websocket to upstream")

	status := edgeErr.StatusCode()
	return c.Status(status).JSON(fiber.Map{"error": http.StatusText(status)})
}
