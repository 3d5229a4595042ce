package domain

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/sony/gobreaker"
	"github.com/valyala/fasthttp"
)

// Kind classifies a failure by the response the edge sends for it.
type Kind int

const (
	KindBadGateway Kind = iota
	KindGatewayTimeout
	KindNotFound
	KindForbidden
	KindRedirectRequired
	KindBadRequest
)

func (k Kind) String() string {
	switch k {
	case KindBadGateway:
		return "bad_gateway"
	case KindGatewayTimeout:
		return "gateway_timeout"
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindRedirectRequired:
		return "redirect_required"
	case KindBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

var (
	ErrRedirectRequired = &EdgeError{Kind: KindRedirectRequired}
	ErrNotFound         = &EdgeError{Kind: KindNotFound}
	ErrForbidden        = &EdgeError{Kind: KindForbidden}
	ErrBadGateway       = &EdgeError{Kind: KindBadGateway}
	ErrGatewayTimeout   = &EdgeError{Kind: KindGatewayTimeout}
	ErrUnresolved       = errors.New("upstream address not resolved")
)

type EdgeError struct {
	Kind     Kind
	Upstream string
	Err      error
}

func (e *EdgeError) Error() string {
	switch {
	case e.Upstream != "" && e.Err != nil:
		return fmt.Sprintf("%s from upstream %s: %v", e.Kind, e.Upstream, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Upstream != "":
		return fmt.Sprintf("%s from upstream %s", e.Kind, e.Upstream)
	default:
		return e.Kind.String()
	}
}

func (e *EdgeError) Unwrap() error {
	return e.Err
}

// Is matches on Kind so callers can compare against the sentinel values.
func (e *EdgeError) Is(target error) bool {
	var t *EdgeError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// StatusCode maps the error kind to the status surfaced to the client.
// Sensitive-path denials are reported as not found.
func (e *EdgeError) StatusCode() int {
	switch e.Kind {
	case KindGatewayTimeout:
		return http.StatusGatewayTimeout
	case KindNotFound, KindForbidden:
		return http.StatusNotFound
	case KindRedirectRequired:
		return http.StatusMovedPermanently
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusBadGateway
	}
}

// NewUpstreamError classifies a failed upstream exchange. Anything that ran
// out of time becomes a gateway timeout; every other failure is a bad gateway.
func NewUpstreamError(upstream string, err error) *EdgeError {
	kind := KindBadGateway
	if IsTimeout(err) {
		kind = KindGatewayTimeout
	}
	return &EdgeError{Kind: kind, Upstream: upstream, Err: err}
}

func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fasthttp.ErrTimeout) ||
		errors.Is(err, fasthttp.ErrDialTimeout) ||
		errors.Is(err, fasthttp.ErrTLSHandshakeTimeout) ||
		errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// StatusCode returns the client status for err, defaulting to bad gateway.
func StatusCode(err error) int {
	var edgeErr *EdgeError
	if errors.As(err, &edgeErr) {
		return edgeErr.StatusCode()
	}
	return http.StatusBadGateway
}
