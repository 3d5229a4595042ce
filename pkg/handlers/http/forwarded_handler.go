package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/NeuralTrust/EdgeRouter/pkg/app/forwarding"
	"github.com/NeuralTrust/EdgeRouter/pkg/app/upstream"
	domain "github.com/NeuralTrust/EdgeRouter/pkg/domain/errors"
	"github.com/NeuralTrust/EdgeRouter/pkg/infra/httpx"
	"github.com/NeuralTrust/EdgeRouter/pkg/infra/prometheus"
	"github.com/NeuralTrust/EdgeRouter/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

type forwardedHandler struct {
	logger         *logrus.Logger
	upstreamFinder upstream.Finder
	clients        map[string]httpx.Doer
	defaultClient  httpx.Doer
	breakers       *httpx.BreakerSet
	proto          string
	port           int
	writeTimeout   time.Duration
}

// ForwardedHandlerDeps contains all dependencies for ForwardedHandler.
type ForwardedHandlerDeps struct {
	Logger         *logrus.Logger
	UpstreamFinder upstream.Finder
	// Client is used for any upstream without an entry in Clients.
	Client   httpx.Doer
	Clients  map[string]httpx.Doer
	Breakers *httpx.BreakerSet
	// Proto and Port describe the public listener, sent as X-Forwarded-Proto
	// and X-Forwarded-Port.
	Proto string
	Port  int
	// WriteTimeout is the public listener's write timeout. The upstream
	// exchange is abandoned once it elapses from request start, since the
	// response can no longer reach the client.
	WriteTimeout time.Duration
}

func NewForwardedHandler(deps ForwardedHandlerDeps) Handler {
	proto := deps.Proto
	if proto == "" {
		proto = "https"
	}
	client := deps.Client
	if client == nil {
		client = httpx.NewUpstreamClient()
	}
	return &forwardedHandler{
		logger:         deps.Logger,
		upstreamFinder: deps.UpstreamFinder,
		clients:        deps.Clients,
		defaultClient:  client,
		breakers:       deps.Breakers,
		proto:          proto,
		port:           deps.Port,
		writeTimeout:   deps.WriteTimeout,
	}
}

func (h *forwardedHandler) Handle(c *fiber.Ctx) error {
	rule := utils.Route(c)
	if rule == nil {
		return h.handleErrorResponse(c, &domain.EdgeError{Kind: domain.KindNotFound})
	}

	endpoint, err := h.upstreamFinder.Find(rule.Upstream)
	if err != nil {
		return h.handleErrorResponse(c, asEdgeError(string(rule.Upstream), err))
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	h.buildUpstreamRequest(c, req, endpoint)

	name := endpoint.Target.Name
	start := time.Now()
	err = h.breakers.Execute(name, func() error {
		return h.do(c, name, req, resp)
	})
	h.observeUpstreamLatency(name, time.Since(start))

	if err != nil {
		return h.handleErrorResponse(c, domain.NewUpstreamError(name, err))
	}

	h.copyUpstreamResponse(c, resp)
	return nil
}

func (h *forwardedHandler) client(name string) httpx.Doer {
	if cl, ok := h.clients[name]; ok && cl != nil {
		return cl
	}
	return h.defaultClient
}

func (h *forwardedHandler) do(c *fiber.Ctx, name string, req *fasthttp.Request, resp *fasthttp.Response) error {
	client := h.client(name)
	if h.writeTimeout <= 0 {
		return client.Do(req, resp)
	}
	return client.DoDeadline(req, resp, c.Context().Time().Add(h.writeTimeout))
}

func (h *forwardedHandler) buildUpstreamRequest(c *fiber.Ctx, req *fasthttp.Request, endpoint *upstream.Endpoint) {
	in := c.Request()

	uri := endpoint.URL(utils.ForwardPath(c), false)
	if q := in.URI().QueryString(); len(q) > 0 {
		uri += "?" + string(q)
	}
	req.SetRequestURI(uri)
	req.Header.SetMethodBytes(in.Header.Method())

	in.Header.VisitAll(func(k, v []byte) {
		if forwarding.SkipRequestHeader(string(k)) {
			return
		}
		req.Header.AddBytesKV(k, v)
	})

	// the upstream sees the host the client asked for, not its own address
	req.UseHostHeader = true
	req.Header.SetHostBytes(in.Header.Host())

	forwarding.FromCtx(c, h.proto, h.port).Visit(func(k, v string) {
		req.Header.Set(k, v)
	})

	if body := in.Body(); len(body) > 0 {
		req.SetBodyRaw(body)
	}
}

func (h *forwardedHandler) copyUpstreamResponse(c *fiber.Ctx, resp *fasthttp.Response) {
	out := c.Response()
	out.SetStatusCode(resp.StatusCode())
	resp.Header.VisitAll(func(k, v []byte) {
		if forwarding.SkipResponseHeader(string(k)) {
			return
		}
		out.Header.AddBytesKV(k, v)
	})
	out.SetBody(resp.Body())
}

func (h *forwardedHandler) handleErrorResponse(c *fiber.Ctx, err *domain.EdgeError) error {
	status := err.StatusCode()
	fields := logrus.Fields{
		"request_id": utils.RequestID(c),
		"path":       c.Path(),
		"kind":       err.Kind.String(),
	}
	if err.Upstream != "" {
		fields["upstream"] = err.Upstream
		prometheus.EdgeUpstreamErrors.WithLabelValues(err.Upstream, err.Kind.String()).Inc()
	}
	h.logger.WithFields(fields).WithError(err).Error("failed to forward request")

	return c.Status(status).JSON(fiber.Map{"error": http.StatusText(status)})
}

func (h *forwardedHandler) observeUpstreamLatency(name string, elapsed time.Duration) {
	ms := float64(elapsed.Microseconds()) / 1000
	if prometheus.Config.EnableUpstreamLatency {
		prometheus.EdgeUpstreamLatency.WithLabelValues(name).Observe(ms)
	}
	if prometheus.Config.EnableLatency {
		prometheus.EdgeRequestLatency.WithLabelValues("upstream").Observe(ms)
	}
}

func asEdgeError(upstreamName string, err error) *domain.EdgeError {
	var edgeErr *domain.EdgeError
	if errors.As(err, &edgeErr) {
		return edgeErr
	}
	return domain.NewUpstreamError(upstreamName, err)
}
