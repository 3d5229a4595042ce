package forwarding

import (
	"strconv"
	"strings"

	"github.com/NeuralTrust/EdgeRouter/pkg/common"
	"github.com/NeuralTrust/EdgeRouter/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

// Forwarded is the request context the edge passes to an upstream as headers.
type Forwarded struct {
	RealIP    string
	For       string
	Proto     string
	Host      string
	Port      string
	RequestID string
}

// FromCtx derives the forwarding headers for c. proto and port describe the
// listener the client reached, never the client-supplied headers.
func FromCtx(c *fiber.Ctx, proto string, port int) Forwarded {
	ip := c.IP()
	xff := ip
	if prior := strings.TrimSpace(c.Get(common.HeaderForwardedFor)); prior != "" {
		xff = prior + ", " + ip
	}

	requestID := utils.RequestID(c)
	if requestID == "" {
		requestID = c.Get(common.HeaderRequestID)
	}

	return Forwarded{
		RealIP:    ip,
		For:       xff,
		Proto:     proto,
		Host:      string(c.Request().Header.Host()),
		Port:      strconv.Itoa(port),
		RequestID: requestID,
	}
}

func (f Forwarded) Visit(fn func(key, value string)) {
	fn(common.HeaderRealIP, f.RealIP)
	fn(common.HeaderForwardedFor, f.For)
	fn(common.HeaderForwardedProto, f.Proto)
	fn(common.HeaderForwardedHost, f.Host)
	fn(common.HeaderForwardedPort, f.Port)
	if f.RequestID != "" {
		fn(common.HeaderRequestID, f.RequestID)
	}
}

func IsHopHeader(key string) bool {
	for _, h := range common.HopHeaders {
		if strings.EqualFold(h, key) {
			return true
		}
	}
	return false
}

// SkipRequestHeader reports whether an inbound header must not be copied to
// the upstream request as-is. The forwarding set is rewritten by Visit.
func SkipRequestHeader(key string) bool {
	if IsHopHeader(key) {
		return true
	}
	switch strings.ToLower(key) {
	case "host", "content-length",
		"x-real-ip", "x-forwarded-for", "x-forwarded-proto",
		"x-forwarded-host", "x-forwarded-port", "x-request-id":
		return true
	}
	return false
}

// SkipResponseHeader reports whether an upstream header is left for the edge
// server to write itself.
func SkipResponseHeader(key string) bool {
	if IsHopHeader(key) {
		return true
	}
	switch strings.ToLower(key) {
	case "content-length", "date":
		return true
	}
	return false
}
