package upstream

import (
	"errors"
	"fmt"
	"net"
	"strconv"
)

var ErrInvalidTarget = errors.New("invalid upstream target")

// Target is a logical backend the edge forwards to. Host is re-resolved on an
// interval so a replaced backend is picked up without a restart.
type Target struct {
	Name               string `mapstructure:"name"`
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Scheme             string `mapstructure:"scheme"`
	Service            string `mapstructure:"service"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
	// CAFile replaces the system roots for an https upstream.
	CAFile string `mapstructure:"ca_file"`
}

func (t Target) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidTarget)
	}
	if t.Host == "" {
		return fmt.Errorf("%w: %s: host is required", ErrInvalidTarget, t.Name)
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("%w: %s: port %d out of range", ErrInvalidTarget, t.Name, t.Port)
	}
	switch t.Scheme {
	case "", "http", "https":
	default:
		return fmt.Errorf("%w: %s: unsupported scheme %q", ErrInvalidTarget, t.Name, t.Scheme)
	}
	return nil
}

func (t Target) SchemeOrDefault() string {
	if t.Scheme == "" {
		return "http"
	}
	return t.Scheme
}

// ServiceName is the name looked up in a service catalog.
func (t Target) ServiceName() string {
	if t.Service != "" {
		return t.Service
	}
	return t.Host
}

// TLSServerName is the name an https upstream's certificate must carry.
func (t Target) TLSServerName() string {
	if t.SchemeOrDefault() != "https" {
		return ""
	}
	return t.Host
}

func (t Target) HostPort() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}
