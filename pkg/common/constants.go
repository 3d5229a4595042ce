package common

import "time"

const (
	HeaderRequestID       = "X-Request-ID"
	HeaderRealIP          = "X-Real-IP"
	HeaderForwardedFor    = "X-Forwarded-For"
	HeaderForwardedProto  = "X-Forwarded-Proto"
	HeaderForwardedHost   = "X-Forwarded-Host"
	HeaderForwardedPort   = "X-Forwarded-Port"
	AcmeChallengePrefix   = "/.well-known/acme-challenge/"
	HealthPath            = "/health"
	VersionPath           = "/__/version"
	DefaultResolveRefresh = 30 * time.Second
)

// HopHeaders are connection-scoped and never copied between the client and
// upstream legs.
var HopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}
