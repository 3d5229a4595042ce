package httpx

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/valyala/fasthttp"
)

// Default values for upstream client options
const (
	DefaultConnectTimeout      = 5 * time.Second
	DefaultSendTimeout         = 60 * time.Second
	DefaultReceiveTimeout      = 60 * time.Second
	DefaultMaxConnsPerHost     = 1024
	DefaultMaxIdleConnDuration = 90 * time.Second
	DefaultReadBufferSize      = 16384
	DefaultWriteBufferSize     = 16384
	DefaultMaxResponseBodySize = 100 * 1024 * 1024 // 100MB
)

type Doer interface {
	Do(req *fasthttp.Request, resp *fasthttp.Response) error
	DoDeadline(req *fasthttp.Request, resp *fasthttp.Response, deadline time.Time) error
}

// UpstreamClientOptions contains configuration for the upstream client
type UpstreamClientOptions struct {
	// ConnectTimeout bounds establishing the TCP connection
	ConnectTimeout time.Duration

	// SendTimeout bounds writing the full request
	SendTimeout time.Duration

	// ReceiveTimeout bounds reading the full response
	ReceiveTimeout time.Duration

	// InsecureSkipVerify controls whether to skip TLS certificate verification
	InsecureSkipVerify bool

	// ServerName is verified against the upstream certificate. Requests are
	// sent to the resolved address, so without it the IP would be checked.
	ServerName string
	RootCAs    *x509.CertPool

	MaxConnsPerHost     int
	MaxIdleConnDuration time.Duration
	ReadBufferSize      int
	WriteBufferSize     int
	MaxResponseBodySize int
}

type UpstreamClientOption func(*UpstreamClientOptions)

func WithConnectTimeout(timeout time.Duration) UpstreamClientOption {
	return func(o *UpstreamClientOptions) {
		o.ConnectTimeout = timeout
	}
}

func WithSendTimeout(timeout time.Duration) UpstreamClientOption {
	return func(o *UpstreamClientOptions) {
		o.SendTimeout = timeout
	}
}

func WithReceiveTimeout(timeout time.Duration) UpstreamClientOption {
	return func(o *UpstreamClientOptions) {
		o.ReceiveTimeout = timeout
	}
}

// WithInsecureSkipVerify sets whether to skip TLS certificate verification
func WithInsecureSkipVerify(skip bool) UpstreamClientOption {
	return func(o *UpstreamClientOptions) {
		o.InsecureSkipVerify = skip
	}
}

func WithServerName(name string) UpstreamClientOption {
	return func(o *UpstreamClientOptions) {
		o.ServerName = name
	}
}

func WithRootCAs(pool *x509.CertPool) UpstreamClientOption {
	return func(o *UpstreamClientOptions) {
		o.RootCAs = pool
	}
}

func WithMaxConnsPerHost(max int) UpstreamClientOption {
	return func(o *UpstreamClientOptions) {
		o.MaxConnsPerHost = max
	}
}

func WithMaxResponseBodySize(size int) UpstreamClientOption {
	return func(o *UpstreamClientOptions) {
		o.MaxResponseBodySize = size
	}
}

// NewUpstreamClient builds the client used to forward requests. It never
// retries: forwarded requests may not be idempotent.
func NewUpstreamClient(opts ...UpstreamClientOption) *fasthttp.Client {
	options := &UpstreamClientOptions{
		ConnectTimeout:      DefaultConnectTimeout,
		SendTimeout:         DefaultSendTimeout,
		ReceiveTimeout:      DefaultReceiveTimeout,
		MaxConnsPerHost:     DefaultMaxConnsPerHost,
		MaxIdleConnDuration: DefaultMaxIdleConnDuration,
		ReadBufferSize:      DefaultReadBufferSize,
		WriteBufferSize:     DefaultWriteBufferSize,
		MaxResponseBodySize: DefaultMaxResponseBodySize,
	}

	for _, opt := range opts {
		opt(options)
	}

	connectTimeout := options.ConnectTimeout
	client := &fasthttp.Client{
		Dial: func(addr string) (net.Conn, error) {
			return fasthttp.DialTimeout(addr, connectTimeout)
		},
		ReadTimeout:                   options.ReceiveTimeout,
		WriteTimeout:                  options.SendTimeout,
		MaxConnsPerHost:               options.MaxConnsPerHost,
		MaxIdleConnDuration:           options.MaxIdleConnDuration,
		ReadBufferSize:                options.ReadBufferSize,
		WriteBufferSize:               options.WriteBufferSize,
		MaxResponseBodySize:           options.MaxResponseBodySize,
		MaxIdemponentCallAttempts:     1,
		NoDefaultUserAgentHeader:      true,
		DisableHeaderNamesNormalizing: true,
		DisablePathNormalizing:        true,
	}

	client.TLSConfig = ClientTLSConfig(options.ServerName, options.RootCAs, options.InsecureSkipVerify)

	return client
}

// ClientTLSConfig returns nil when nothing differs from the defaults.
func ClientTLSConfig(serverName string, rootCAs *x509.CertPool, insecureSkipVerify bool) *tls.Config {
	if serverName == "" && rootCAs == nil && !insecureSkipVerify {
		return nil
	}
	return &tls.Config{
		ServerName:         serverName,
		RootCAs:            rootCAs,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecureSkipVerify, //nolint:gosec // intentionally configurable
	}
}

// LoadCertPool reads a PEM bundle of CA certificates.
func LoadCertPool(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied path
	if err != nil {
		return nil, fmt.Errorf("failed to read ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("no certificates found in %s", path)
	}
	return pool, nil
}
