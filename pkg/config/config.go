package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/NeuralTrust/EdgeRouter/pkg/app/routing"
	"github.com/NeuralTrust/EdgeRouter/pkg/domain/upstream"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

const (
	ResolverDNS    = "dns"
	ResolverConsul = "consul"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	TLS       TLSConfig         `mapstructure:"tls"`
	Routes    []routing.Rule    `mapstructure:"routes"`
	Upstreams []upstream.Target `mapstructure:"upstreams"`
	Resolver  ResolverConfig    `mapstructure:"resolver"`
	Proxy     ProxyConfig       `mapstructure:"proxy"`
	CORS      CORSConfig        `mapstructure:"cors"`
	ACME      ACMEConfig        `mapstructure:"acme"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
	WebSocket WebSocketConfig   `mapstructure:"websocket"`
	Log       LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	HTTPPort        int           `mapstructure:"http_port"`
	HTTPSPort       int           `mapstructure:"https_port"`
	PublicHTTPSPort int           `mapstructure:"public_https_port"`
	MetricsPort     int           `mapstructure:"metrics_port"`
	PIDFile         string        `mapstructure:"pid_file"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BodyLimit       int           `mapstructure:"body_limit"`
	HSTSMaxAge      int           `mapstructure:"hsts_max_age"`
	FrameOptions    string        `mapstructure:"frame_options"`
}

type TLSConfig struct {
	CertFile   string `mapstructure:"cert_file"`
	KeyFile    string `mapstructure:"key_file"`
	MinVersion string `mapstructure:"min_version"`
	MaxVersion string `mapstructure:"max_version"`
}

type ResolverConfig struct {
	Kind            string        `mapstructure:"kind"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	LookupTimeout   time.Duration `mapstructure:"lookup_timeout"`
	ConsulAddr      string        `mapstructure:"consul_addr"`
	ConsulTag       string        `mapstructure:"consul_tag"`
}

type ProxyConfig struct {
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout"`
	SendTimeout         time.Duration `mapstructure:"send_timeout"`
	ReceiveTimeout      time.Duration `mapstructure:"receive_timeout"`
	MaxResponseBodySize int           `mapstructure:"max_response_body_size"`
	Breaker             BreakerConfig `mapstructure:"breaker"`
}

type BreakerConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxFailures uint32        `mapstructure:"max_failures"`
	OpenTimeout time.Duration `mapstructure:"open_timeout"`
}

type CORSConfig struct {
	AllowOrigins     []string `mapstructure:"allow_origins"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
	ExposeHeaders    []string `mapstructure:"expose_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

type ACMEConfig struct {
	Webroot string `mapstructure:"webroot"`
}

type MetricsConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	EnableLatency     bool `mapstructure:"enable_latency"`
	EnableUpstream    bool `mapstructure:"enable_upstream"`
	EnableConnections bool `mapstructure:"enable_connections"`
	EnablePerRoute    bool `mapstructure:"enable_per_route"`
}

type WebSocketConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	PingPeriod       time.Duration `mapstructure:"ping_period"`
	PongWait         time.Duration `mapstructure:"pong_wait"`
	ReadBufferSize   int           `mapstructure:"read_buffer_size"`
	WriteBufferSize  int           `mapstructure:"write_buffer_size"`
	MaxConnections   int           `mapstructure:"max_connections"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load reads config.yaml from configPath (falling back to ./config and .),
// applies environment overrides and defaults, and validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaultValues(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file config.yaml: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDerivedDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToUpstreamKindHook(),
	)
}

func stringToUpstreamKindHook() mapstructure.DecodeHookFuncType {
	kindType := reflect.TypeOf(routing.UpstreamKind(""))
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != kindType {
			return data, nil
		}
		s, _ := data.(string) //nolint:errcheck
		return routing.ParseUpstreamKind(s)
	}
}

func setDefaultValues(v *viper.Viper) {
	v.SetDefault("server.http_port", 80)
	v.SetDefault("server.https_port", 443)
	v.SetDefault("server.public_https_port", 0)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.pid_file", "/run/edgerouter.pid")
	v.SetDefault("server.read_timeout", 60*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.body_limit", 8*1024*1024)
	v.SetDefault("server.hsts_max_age", 31536000)
	v.SetDefault("server.frame_options", "SAMEORIGIN")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("tls.cert_file", "/etc/letsencrypt/live/edge/fullchain.pem")
	v.SetDefault("tls.key_file", "/etc/letsencrypt/live/edge/privkey.pem")
	v.SetDefault("tls.min_version", "TLS12")
	v.SetDefault("tls.max_version", "TLS13")

	v.SetDefault("resolver.kind", ResolverDNS)
	v.SetDefault("resolver.refresh_interval", 30*time.Second)
	v.SetDefault("resolver.lookup_timeout", 5*time.Second)
	v.SetDefault("resolver.consul_addr", "")
	v.SetDefault("resolver.consul_tag", "")

	v.SetDefault("proxy.connect_timeout", 5*time.Second)
	v.SetDefault("proxy.send_timeout", 60*time.Second)
	v.SetDefault("proxy.receive_timeout", 60*time.Second)
	v.SetDefault("proxy.max_response_body_size", 100*1024*1024)
	v.SetDefault("proxy.breaker.enabled", false)
	v.SetDefault("proxy.breaker.max_failures", 5)
	v.SetDefault("proxy.breaker.open_timeout", 30*time.Second)

	v.SetDefault("cors.allow_origins", []string{"http://localhost:3000"})
	v.SetDefault("cors.allow_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allow_headers", []string{"Authorization", "Content-Type", "X-Request-ID", "X-Version"})
	v.SetDefault("cors.expose_headers", []string{})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 86400)

	v.SetDefault("acme.webroot", "/var/www/certbot")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.enable_latency", true)
	v.SetDefault("metrics.enable_upstream", true)
	v.SetDefault("metrics.enable_connections", false)
	v.SetDefault("metrics.enable_per_route", true)

	v.SetDefault("websocket.handshake_timeout", 15*time.Second)
	v.SetDefault("websocket.ping_period", 30*time.Second)
	v.SetDefault("websocket.pong_wait", 45*time.Second)
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.max_connections", 1024)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "logs/edge.log")
}

func applyDerivedDefaults(cfg *Config) {
	if cfg.Server.PublicHTTPSPort == 0 {
		cfg.Server.PublicHTTPSPort = cfg.Server.HTTPSPort
	}
	if len(cfg.Routes) == 0 {
		cfg.Routes = DefaultRoutes()
	}
	if len(cfg.Upstreams) == 0 {
		cfg.Upstreams = DefaultUpstreams()
	}
}

func DefaultRoutes() []routing.Rule {
	return []routing.Rule{
		{Name: "api", Prefix: "/api", Upstream: routing.UpstreamAPI, StripPrefix: true},
		{Name: "frontend", Prefix: "/", Upstream: routing.UpstreamFrontend, Websocket: true},
	}
}

func DefaultUpstreams() []upstream.Target {
	return []upstream.Target{
		{Name: string(routing.UpstreamAPI), Host: "backend", Port: 4000, Scheme: "http"},
		{Name: string(routing.UpstreamFrontend), Host: "frontend", Port: 3000, Scheme: "http"},
	}
}

// RouteTable builds the immutable, longest-prefix-first rule table.
func (c *Config) RouteTable() (*routing.Table, error) {
	return routing.NewTable(c.Routes)
}

func (c *Config) Upstream(name string) (upstream.Target, bool) {
	for _, t := range c.Upstreams {
		if t.Name == name {
			return t, true
		}
	}
	return upstream.Target{}, false
}

func (c *Config) UpstreamNames() []string {
	names := make([]string, 0, len(c.Upstreams))
	for _, t := range c.Upstreams {
		names = append(names, t.Name)
	}
	return names
}

func (c *Config) Validate() error {
	var errs []error

	for name, port := range map[string]int{
		"server.http_port":    c.Server.HTTPPort,
		"server.https_port":   c.Server.HTTPSPort,
		"server.metrics_port": c.Server.MetricsPort,
	} {
		if port <= 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("%s: %d out of range", name, port))
		}
	}

	for name, d := range map[string]time.Duration{
		"proxy.connect_timeout":     c.Proxy.ConnectTimeout,
		"proxy.send_timeout":        c.Proxy.SendTimeout,
		"proxy.receive_timeout":     c.Proxy.ReceiveTimeout,
		"resolver.refresh_interval": c.Resolver.RefreshInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}

	switch c.Resolver.Kind {
	case ResolverDNS, ResolverConsul:
	default:
		errs = append(errs, fmt.Errorf("resolver.kind: unknown resolver %q", c.Resolver.Kind))
	}

	if len(c.CORS.AllowOrigins) == 0 {
		errs = append(errs, errors.New("cors.allow_origins must not be empty"))
	}

	seen := make(map[string]struct{}, len(c.Upstreams))
	for _, t := range c.Upstreams {
		if err := t.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[t.Name]; dup {
			errs = append(errs, fmt.Errorf("upstreams: duplicate name %q", t.Name))
		}
		seen[t.Name] = struct{}{}
	}

	if _, err := c.RouteTable(); err != nil {
		errs = append(errs, fmt.Errorf("routes: %w", err))
	}
	for _, r := range c.Routes {
		if _, ok := seen[string(r.Upstream)]; !ok {
			errs = append(errs, fmt.Errorf("routes: %s targets undefined upstream %q", r.Label(), r.Upstream))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}
